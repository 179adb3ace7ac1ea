package graph

import (
	"encoding/base64"

	"github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/notify"
)

type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

type sendMailMessage struct {
	Subject      string           `json:"subject"`
	Body         messageBody      `json:"body"`
	ToRecipients []recipient      `json:"toRecipients"`
	Attachments  []fileAttachment `json:"attachments,omitempty"`
}

type messageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
}

type fileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

// tokenResponse covers both the success and the error shape of the
// identity platform's token endpoint.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// buildSendMailRequest turns a notification into a sendMail body addressed to recipient.
func buildSendMailRequest(recipientAddr string, n *notify.Notification) *sendMailRequest {
	attachments := make([]fileAttachment, 0, len(n.Files))
	for _, f := range n.Files {
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attachments = append(attachments, fileAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         f.Name,
			ContentType:  contentType,
			ContentBytes: base64.StdEncoding.EncodeToString(f.Content),
		})
	}

	return &sendMailRequest{
		Message: sendMailMessage{
			Subject: n.Subject(),
			Body: messageBody{
				ContentType: "text",
				Content:     n.Summary(),
			},
			ToRecipients: []recipient{{EmailAddress: emailAddress{Address: recipientAddr}}},
			Attachments:  attachments,
		},
	}
}
