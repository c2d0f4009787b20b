package handler

import (
	"errors"
	"mime"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"studium/internal/auth"
	"studium/internal/service"
)

// sourceError translates service errors into API errors. Unknown errors are returned
// unchanged for the global error handler.
func sourceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "source not found")
	case errors.Is(err, service.ErrFileMissing):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "source file not found")
	case errors.Is(err, service.ErrUnsupportedContentType):
		return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_CONTENT_TYPE", "only PDF files are supported")
	case errors.Is(err, service.ErrContentMismatch):
		return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_CONTENT_TYPE", "file content is not a PDF")
	case errors.Is(err, service.ErrTitleRequired):
		return writeError(c, fiber.StatusBadRequest, "TITLE_REQUIRED", "title is required")
	case errors.Is(err, service.ErrTitleTooLong):
		return writeError(c, fiber.StatusBadRequest, "TITLE_TOO_LONG", "title must be at most 255 characters")
	case errors.Is(err, service.ErrFileRequired):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	case errors.Is(err, service.ErrFileNameTooLong):
		return writeError(c, fiber.StatusBadRequest, "FILE_NAME_TOO_LONG", "file name must be at most 255 characters")
	default:
		return err
	}
}

func parseID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

// ListSources returns the caller's sources, newest first.
//
//	@Summary	List sources
//	@Tags		sources
//	@Produce	json
//	@Success	200	{array}		model.Source
//	@Failure	500	{object}	errorPayload
//	@Router		/v1/sources [get]
func ListSources(svc service.SourceService, identity auth.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, err := identity.ResolveCallerIdentity(c.UserContext())
		if err != nil {
			return err
		}
		items, err := svc.List(c.UserContext(), owner)
		if err != nil {
			return sourceError(c, err)
		}
		return c.JSON(items)
	}
}

// GetSource returns one of the caller's sources.
//
//	@Summary	Get a source
//	@Tags		sources
//	@Produce	json
//	@Param		id	path		string	true	"Source ID"
//	@Success	200	{object}	model.Source
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/v1/sources/{id} [get]
func GetSource(svc service.SourceService, identity auth.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		owner, err := identity.ResolveCallerIdentity(c.UserContext())
		if err != nil {
			return err
		}
		src, err := svc.Get(c.UserContext(), owner, id)
		if err != nil {
			return sourceError(c, err)
		}
		return c.JSON(src)
	}
}

// CreateSource stores an uploaded PDF and records it as a source.
// The multipart form carries title, an optional description and the file.
//
//	@Summary	Upload a source
//	@Tags		sources
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		title		formData	string	true	"Title"
//	@Param		description	formData	string	false	"Description"
//	@Param		file		formData	file	true	"PDF file"
//	@Success	201			{object}	model.Source
//	@Failure	400			{object}	errorPayload
//	@Failure	500			{object}	errorPayload
//	@Router		/v1/sources [post]
func CreateSource(svc service.SourceService, identity auth.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, err := identity.ResolveCallerIdentity(c.UserContext())
		if err != nil {
			return err
		}

		in := service.CreateSourceInput{
			OwnerID: owner,
			Title:   c.FormValue("title"),
			Size:    -1,
		}
		if d := c.FormValue("description"); d != "" {
			in.Description = &d
		}

		var f multipart.File
		if fh, err := c.FormFile("file"); err == nil {
			if f, err = fh.Open(); err != nil {
				return err
			}
			defer f.Close()
			in.Body = f
			in.FileName = fh.Filename
			in.ContentType = fh.Header.Get("Content-Type")
			in.Size = fh.Size
		}

		src, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return sourceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(src)
	}
}

// DownloadSourceFile streams the stored PDF of a source, or redirects to a
// presigned URL when the storage backend issues one.
//
//	@Summary	Download a source file
//	@Tags		sources
//	@Produce	application/pdf
//	@Param		id	path	string	true	"Source ID"
//	@Success	200
//	@Success	307
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/v1/sources/{id}/file [get]
func DownloadSourceFile(svc service.SourceService, identity auth.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		owner, err := identity.ResolveCallerIdentity(c.UserContext())
		if err != nil {
			return err
		}
		file, err := svc.Open(c.UserContext(), owner, id)
		if err != nil {
			return sourceError(c, err)
		}
		if file.RedirectURL != "" {
			return c.Redirect(file.RedirectURL, fiber.StatusTemporaryRedirect)
		}

		c.Set(fiber.HeaderContentType, file.Info.ContentType)
		c.Set(fiber.HeaderContentDisposition,
			mime.FormatMediaType("inline", map[string]string{"filename": file.Source.OriginalFileName}))
		size := -1
		if file.Info.Size > 0 {
			size = int(file.Info.Size)
		}
		// fasthttp closes the stream once the body is written.
		return c.SendStream(file.Body, size)
	}
}
