package endpoints

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const pasteCodeMessage = "Paste this code where you were asked to sign in to Google Drive"

// OAuthCallbackRequest is the query Google redirects to after sign-in.
type OAuthCallbackRequest struct {
	Code  string `form:"code"`
	State string `form:"state"`
	Error string `form:"error"`
}

// OAuthCallbackResponse hands the authorization code back to the user, who
// answers the drive sign-in modal with it.
type OAuthCallbackResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

var callbackPage = template.Must(template.New("callback").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Google Drive sign-in</title></head>
<body>
{{if .Success}}<p>{{.Message}}:</p>
<pre>{{.Code}}</pre>{{else}}<p>Google Drive sign-in failed: {{.Error}}</p>{{end}}
</body></html>
`))

// HandleOAuthCallback shows the code from the Google redirect. Browsers get
// a page, API clients get JSON.
func HandleOAuthCallback(c *gin.Context) {
	var req OAuthCallbackRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		renderCallback(c, http.StatusBadRequest, OAuthCallbackResponse{Error: "Invalid request parameters"})
		return
	}

	switch {
	case req.Error != "":
		slog.Warn("Google sign-in was not completed", "error", req.Error, "state", req.State)
		renderCallback(c, http.StatusBadRequest, OAuthCallbackResponse{Error: req.Error, State: req.State})
	case req.Code == "":
		renderCallback(c, http.StatusBadRequest, OAuthCallbackResponse{Error: "Missing authorization code", State: req.State})
	default:
		slog.Info("Google sign-in code received", "state", req.State)
		renderCallback(c, http.StatusOK, OAuthCallbackResponse{
			Success: true,
			Code:    req.Code,
			State:   req.State,
			Message: pasteCodeMessage,
		})
	}
}

func renderCallback(c *gin.Context, status int, resp OAuthCallbackResponse) {
	if c.NegotiateFormat(gin.MIMEJSON, gin.MIMEHTML) != gin.MIMEHTML {
		c.JSON(status, resp)
		return
	}

	var page bytes.Buffer
	if err := callbackPage.Execute(&page, resp); err != nil {
		slog.Error("Failed to render sign-in page", "error", err)
		c.JSON(status, resp)
		return
	}
	c.Data(status, "text/html; charset=utf-8", page.Bytes())
}
