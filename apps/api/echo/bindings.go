package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mwalimu/core"
)

var (
	orderingParam = "ordering"
	fileField     = "file"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindFile opens the multipart `file` field. The caller must call the returned close func.
func bindFile(ctx echo.Context) (core.UploadedFile, func(), error) {
	fh, err := ctx.FormFile(fileField)
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return core.UploadedFile{}, nil, core.NewValidationError(nil, core.FieldError{Field: fileField, Error: "this field is required"})
		}
		return core.UploadedFile{}, nil, errors.Wrap(err, "reading multipart form")
	}
	src, err := fh.Open()
	if err != nil {
		return core.UploadedFile{}, nil, errors.Wrap(err, "opening uploaded file")
	}
	f := core.UploadedFile{Filename: fh.Filename, Size: fh.Size, Content: src}
	return f, func() { _ = src.Close() }, nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}
)
