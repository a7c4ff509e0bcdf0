package core

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

var (
	errNotDir = errors.New("not a directory")
	errLocked = errors.New("another apply run holds the vault lock")
)

const (
	codeVaultInvalid  = "VAULT_INVALID"
	codeConfigInvalid = "CONFIG_INVALID"
	codeVaultLocked   = "VAULT_LOCKED"
)

func invalidVault(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid vault").
		WithTextCode(codeVaultInvalid)
}

func invalidConfig(err error) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
		WithTextCode(codeConfigInvalid)
}

func vaultLocked(err error, holder, lockPath string) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	msg := fmt.Sprintf("vault is locked by pid %s; if no csfpub run is active, remove %s and retry", holder, lockPath)
	return goerrors.Wrap(err, goerrors.CategoryCommand, msg).
		WithTextCode(codeVaultLocked)
}
