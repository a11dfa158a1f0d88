package service

import (
	"errors"

	"github.com/emrgen/docgen/internal/apperr"
	"github.com/emrgen/docgen/internal/render"
	"github.com/emrgen/docgen/internal/storage"
	"github.com/emrgen/docgen/internal/store"
)

var (
	// ErrTemplateNotFound is returned when a template id does not exist.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrVersionNotFound is returned when a template has no version with the given id.
	ErrVersionNotFound = errors.New("template version not found")
	// ErrNoTemplate is returned when no active template serves a category and language.
	ErrNoTemplate = errors.New("no active template for category and language")
	// ErrDocumentNotFound is returned when a document id does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrAccessDenied is returned when an actor may not read a document.
	ErrAccessDenied = errors.New("access denied")
	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = errors.New("invalid id")
)

// notFoundOr classifies a store error, mapping store.ErrNotFound to sentinel.
func notFoundOr(op string, err, sentinel error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, sentinel.Error(), errors.Join(sentinel, err))
	}

	return apperr.New(apperr.KindInternal, op, "", err)
}

func invalid(op string, err error) error {
	return apperr.New(apperr.KindValidation, op, err.Error(), err)
}

// classify keeps classified errors and marks the rest internal.
func classify(op string, err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}

	return apperr.New(apperr.KindInternal, op, "", err)
}

func renderError(op string, err error) error {
	if errors.Is(err, render.ErrUnsupportedLanguage) || errors.Is(err, render.ErrNoSections) {
		return apperr.New(apperr.KindValidation, op, err.Error(), err)
	}

	return apperr.New(apperr.KindRender, op, "", err)
}

func storageError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrCorrupted), errors.Is(err, storage.ErrBadSignature):
		return apperr.New(apperr.KindIntegrity, op, "", err)
	case errors.Is(err, storage.ErrEmpty), errors.Is(err, storage.ErrTooSmall):
		return apperr.New(apperr.KindRender, op, "", err)
	case errors.Is(err, storage.ErrObjectNotFound):
		return apperr.NotFound(op, "", err)
	}

	return apperr.New(apperr.KindStorage, op, "", err)
}
