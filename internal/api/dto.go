package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/raphaelgruber/vaultbot/internal/extract"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// MessageRequest is the JSON body of POST /v1/messages.
type MessageRequest struct {
	Text      string        `json:"text" validate:"required,max=200000"`
	Links     []LinkRequest `json:"links" validate:"omitempty,max=100,dive"`
	Source    string        `json:"source" validate:"omitempty,max=64"`
	Subfolder string        `json:"subfolder" validate:"omitempty,max=200"`
	UserID    string        `json:"user_id" validate:"omitempty,max=64"`
	Username  string        `json:"username" validate:"omitempty,max=64"`
}

// LinkRequest is an inline link entity with rune offsets into Text.
type LinkRequest struct {
	Offset int    `json:"offset" validate:"gte=0"`
	Length int    `json:"length" validate:"gt=0"`
	URL    string `json:"url" validate:"required,url"`
}

// UploadRequest holds the form fields of a multipart POST /v1/messages.
type UploadRequest struct {
	Kind      string `validate:"omitempty,oneof=photo document voice"`
	Text      string `validate:"max=200000"`
	Source    string `validate:"omitempty,max=64"`
	Subfolder string `validate:"omitempty,max=200"`
	Duration  int    `validate:"gte=0,lte=86400"`
}

// IngestRequest is the JSON body of POST /v1/ingest.
type IngestRequest struct {
	Path      string `json:"path" validate:"required"`
	Recursive bool   `json:"recursive"`
	Source    string `json:"source" validate:"omitempty,max=64"`
	Subfolder string `json:"subfolder" validate:"omitempty,max=200"`
}

// RelatedQuery holds the query parameters of GET /v1/notes/related.
type RelatedQuery struct {
	Tags     []string `validate:"max=20,dive,max=100"`
	Entities []string `validate:"max=20,dive,max=100"`
	Limit    int      `validate:"gte=0,lte=50"`
}

// SearchQuery holds the query parameters of GET /v1/notes/search.
type SearchQuery struct {
	Query string `validate:"min=3,max=200"`
	Limit int    `validate:"gte=0,lte=50"`
}

func toLinkEntities(links []LinkRequest) []extract.LinkEntity {
	out := make([]extract.LinkEntity, 0, len(links))
	for _, l := range links {
		out = append(out, extract.LinkEntity{Offset: l.Offset, Length: l.Length, URL: l.URL})
	}
	return out
}

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
