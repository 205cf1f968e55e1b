package email

import (
	"net/url"
	"strconv"
	"strings"
)

// BuildLink arma la URL de confirmación que viaja en el email:
// <base><path>?token=...&uid=...
// El token es opaco para el consumidor; solo vuelve tal cual en el confirm.
func BuildLink(baseURL, path, token string, userID int64) string {
	base := strings.TrimRight(baseURL, "/")
	q := url.Values{}
	q.Set("token", token)
	q.Set("uid", strconv.FormatInt(userID, 10))
	return base + path + "?" + q.Encode()
}
