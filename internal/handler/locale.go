package handler

import (
    "github.com/labstack/echo/v4"
    "golang.org/x/text/language"
)

// requestLocale returns the preferred language of the Accept-Language
// header, or English when the header is absent or malformed.
func requestLocale(c echo.Context) language.Tag {
    tags, _, err := language.ParseAcceptLanguage(c.Request().Header.Get("Accept-Language"))
    if err != nil || len(tags) == 0 {
        return language.English
    }
    return tags[0]
}
