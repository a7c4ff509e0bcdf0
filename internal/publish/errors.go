package publish

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	codeCSFInvalid     = "CSF_INVALID"
	codeOptionsInvalid = "OPTIONS_INVALID"
	codePublishFailed  = "PUBLISH_FAILED"
)

func invalidCSF(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid storage-format document").
		WithTextCode(codeCSFInvalid)
}

func invalidOptions(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid publish options").
		WithTextCode(codeOptionsInvalid)
}

func publishFailed(err error, msg string) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryCommand, msg).
		WithTextCode(codePublishFailed)
}
