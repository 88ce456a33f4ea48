package api

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/go-resty/resty/v2"

	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
)

type UploadInput struct {
	Titre    string
	Type     model.DocumentType
	Projet   *model.ProjectID
	FileName string
	Content  io.Reader
}

func documentPath(id model.DocumentID) string {
	return fmt.Sprintf("/documents/%d/", id)
}

// ListDocuments lists documents, restricted to one project when projet is non-zero.
func (c *Client) ListDocuments(ctx context.Context, projet model.ProjectID) ([]model.Document, error) {
	var query map[string]string
	if projet != 0 {
		query = map[string]string{"projet": strconv.FormatInt(int64(projet), 10)}
	}

	var out []model.Document
	if err := c.do(ctx, call{method: resty.MethodGet, path: "/documents/", query: query, result: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UploadDocument(ctx context.Context, input UploadInput) (*model.Document, error) {
	if input.Content == nil || input.FileName == "" {
		return nil, herrors.New(herrors.CodeInvalidInput, "document file is required")
	}
	if input.Titre == "" {
		input.Titre = input.FileName
	}
	if input.Type == "" {
		input.Type = model.DocumentAutre
	}

	fields := map[string]string{
		"titre": input.Titre,
		"type":  string(input.Type),
	}
	if input.Projet != nil {
		fields["projet"] = strconv.FormatInt(int64(*input.Projet), 10)
	}

	var out model.Document
	err := c.do(ctx, call{
		method: resty.MethodPost,
		path:   "/documents/",
		result: &out,
		form: func(req *resty.Request) {
			req.SetFormData(fields).SetFileReader("fichier", input.FileName, input.Content)
		},
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id model.DocumentID) error {
	return c.do(ctx, call{method: resty.MethodDelete, path: documentPath(id)})
}
