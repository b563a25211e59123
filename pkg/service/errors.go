package service

import (
	"errors"
	"os"

	clierrors "github.com/vladislav-moscow/Social/pkg/errors"
)

var errNoRelay = errors.New("relay is not configured")

func isNoChat(err error) bool {
	var cliErr *clierrors.CLIError
	return errors.As(err, &cliErr) && cliErr.Type == clierrors.ErrorTypeNoChat
}

// checkFile reports a missing image before anything is sent.
func checkFile(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return clierrors.FileNotFoundError(path)
	}
	return nil
}
