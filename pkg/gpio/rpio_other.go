//go:build !(linux && (arm || arm64))

package gpio

import "github.com/pkg/errors"

func OpenBoard(opts BoardOptions) (*Board, error) {
	return nil, errors.New("rpio backend is only available on linux/arm; use --hardware sim")
}
