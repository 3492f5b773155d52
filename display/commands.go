package display

import (
	"bufio"
	"context"
	"io"

	"go.viam.com/stereocalib/calibration"
	"go.viam.com/stereocalib/logging"
)

const (
	ctrlC  = 3
	escKey = 27
)

// KeyCommand maps a key to its command: g recaptures, u toggles the undistorted preview and
// escape, q or ctrl-c exits. A raw terminal delivers ctrl-c as a key instead of a signal.
func KeyCommand(key rune) (calibration.Command, bool) {
	switch key {
	case 'g':
		return calibration.Recapture, true
	case 'u':
		return calibration.ToggleUndistort, true
	case ctrlC, escKey, 'q':
		return calibration.Exit, true
	}
	return 0, false
}

// ReadCommands turns the keys typed on r into commands until r ends or ctx is done. The
// returned channel is closed then.
func ReadCommands(ctx context.Context, r io.Reader, logger logging.Logger) <-chan calibration.Command {
	commands := make(chan calibration.Command, 8)
	go func() {
		defer close(commands)
		reader := bufio.NewReader(r)
		for {
			key, _, err := reader.ReadRune()
			if err != nil {
				if err != io.EOF {
					logger.Debugw("stopped reading commands", "error", err)
				}
				return
			}
			cmd, ok := KeyCommand(key)
			if !ok {
				continue
			}
			select {
			case commands <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return commands
}
