package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/holdfast/auth-service/internal/domain"
)

// maxBodyBytes bounds request bodies; an ID token is a few KB at most.
const maxBodyBytes = 64 << 10

// DecodeJSON decodes a JSON request body into dst.
// It rejects unknown fields and multiple JSON values.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return domain.ErrInvalidJSON(errors.New("empty body"))
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrInvalidJSON(err)
	}

	// {}{} is not one value
	if err := dec.Decode(&struct{}{}); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.ErrInvalidJSON(err)
	}
	return domain.ErrInvalidJSON(errors.New("multiple JSON values"))
}
