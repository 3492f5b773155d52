// Package main is the stereo calibration command line tool.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/stereocalib/calibration"
	"go.viam.com/stereocalib/calibration/output"
	"go.viam.com/stereocalib/calibration/pattern"
	"go.viam.com/stereocalib/config"
	"go.viam.com/stereocalib/display"
	"go.viam.com/stereocalib/logging"
	"go.viam.com/stereocalib/rimage"
	"go.viam.com/stereocalib/rimage/detection"
	"go.viam.com/stereocalib/rimage/imagesource"
)

const (
	// Flags.
	generalFlagDebug       = "debug"
	generalFlagLogFile     = "log-file"
	calibrateFlagSettings  = "settings"
	calibrateFlagPreview   = "preview-dir"
	calibrateFlagKeys      = "interactive"
	calibrateFlagChart     = "error-chart"
	undistortFlagCalib     = "calibration"
	undistortFlagInput     = "input"
	undistortFlagOutput    = "output"
	boardFlagPattern       = "pattern"
	boardFlagWidth         = "width"
	boardFlagHeight        = "height"
	boardFlagPixelsPerUnit = "pixels-per-square"
	boardFlagOutput        = "output"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	app := newApp(ctx, os.Stdout, os.Stdin)
	if err := app.Run(os.Args); err != nil {
		cancel()
		log.Fatal(err)
	}
}

func newApp(ctx context.Context, out io.Writer, in io.Reader) *cli.App {
	var (
		logger  logging.Logger
		logFile *logging.FileAppender
	)
	console := display.NewConsoleWriter(out)
	return &cli.App{
		Name:      "stereocalib",
		Usage:     "calibrate the two cameras of a side by side stereo rig",
		Writer:    console,
		ErrWriter: console,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.PathFlag{
				Name:  generalFlagLogFile,
				Usage: "also append logs to `FILE`, rotated every 10 MB",
			},
		},
		Before: func(c *cli.Context) error {
			level := logging.INFO
			if c.Bool(generalFlagDebug) {
				level = logging.DEBUG
			}
			logger = logging.NewWriterLogger("stereocalib", level, console)
			if path := c.Path(generalFlagLogFile); path != "" {
				logFile = logging.NewFileAppender(path, 10, 3)
				logger.AddAppender(logFile)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if logFile == nil {
				return nil
			}
			return logFile.Close()
		},
		Commands: []*cli.Command{
			{
				Name:      "calibrate",
				Usage:     "run a calibration session from a settings file",
				UsageText: "stereocalib calibrate --settings <file> [--preview-dir <dir>] [--error-chart <image>] [--interactive]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     calibrateFlagSettings,
						Aliases:  []string{"s"},
						Required: true,
						Usage:    "settings `FILE`",
					},
					&cli.PathFlag{
						Name:  calibrateFlagPreview,
						Usage: "write an annotated preview of every frame into `DIR`",
					},
					&cli.PathFlag{
						Name:  calibrateFlagChart,
						Usage: "save a chart of the per view reprojection errors to `IMAGE`",
					},
					&cli.BoolFlag{
						Name:  calibrateFlagKeys,
						Usage: "read g (recapture), u (undistorted preview) and q (quit) from stdin",
					},
				},
				Action: func(c *cli.Context) error {
					return calibrateAction(ctx, c, logger, in, console)
				},
			},
			{
				Name:      "undistort",
				Usage:     "remove lens distortion from an image using a saved calibration",
				UsageText: "stereocalib undistort --calibration <file> --input <image> --output <image>",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: undistortFlagCalib, Required: true, Usage: "calibration `FILE`"},
					&cli.PathFlag{Name: undistortFlagInput, Required: true, Usage: "distorted `IMAGE`"},
					&cli.PathFlag{Name: undistortFlagOutput, Required: true, Usage: "undistorted `IMAGE`"},
				},
				Action: func(c *cli.Context) error {
					return undistortAction(c, logger)
				},
			},
			{
				Name:      "board",
				Usage:     "render a printable calibration target",
				UsageText: "stereocalib board --pattern CHESSBOARD --width 9 --height 6 --output board.png",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: boardFlagPattern, Value: pattern.Chessboard.String(), Usage: "target `TYPE`"},
					&cli.IntFlag{Name: boardFlagWidth, Value: 9, Usage: "features per row"},
					&cli.IntFlag{Name: boardFlagHeight, Value: 6, Usage: "features per column"},
					&cli.IntFlag{Name: boardFlagPixelsPerUnit, Value: 100, Usage: "pixels between neighboring features"},
					&cli.PathFlag{Name: boardFlagOutput, Required: true, Usage: "output `IMAGE`"},
				},
				Action: func(c *cli.Context) error {
					return boardAction(c, logger)
				},
			},
		},
	}
}

func calibrateAction(
	ctx context.Context,
	c *cli.Context,
	logger logging.Logger,
	in io.Reader,
	console *display.ConsoleWriter,
) (err error) {
	settings, err := config.Read(c.Path(calibrateFlagSettings))
	if err != nil {
		return err
	}
	cfg, err := settings.ControllerConfig()
	if err != nil {
		return err
	}
	src, err := imagesource.Open(settings.Input, logger.Sublogger("source"))
	if err != nil {
		return err
	}

	detector := detection.NewDetector(detection.DefaultOptions(), logger.Sublogger("detection"))
	sessions := make([]*calibration.CameraSession, 2)
	for i, name := range []string{"left", "right"} {
		camLogger := logger.Sublogger(name)
		sessions[i], err = calibration.NewCameraSession(name, cfg.Spec, detector,
			calibration.NewEstimator(calibration.NewZhangSolver(camLogger), camLogger), camLogger)
		if err != nil {
			return err
		}
	}

	writer := output.NewWriter(settings.LeftOutputFileName, settings.RightOutputFileName, output.Options{
		Spec:            cfg.Spec,
		Flags:           cfg.Flags,
		AspectRatio:     settings.AspectRatio,
		WritePoints:     settings.WritePoints,
		WriteExtrinsics: settings.WriteExtrinsics,
	}, logger.Sublogger("output"))
	opts := []calibration.Option{
		calibration.WithSink(writer),
		calibration.WithObserver(display.NewLogObserver(logger.Sublogger("status"))),
	}
	if dir := c.Path(calibrateFlagPreview); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "cannot create preview directory %q", dir)
		}
		opts = append(opts, calibration.WithObserver(display.NewFrameWriter(dir, logger.Sublogger("preview"))))
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if c.Bool(calibrateFlagKeys) {
		restore, rawErr := display.RawKeys(in, console)
		if rawErr != nil {
			return rawErr
		}
		defer func() {
			err = multierr.Combine(err, restore())
		}()
		opts = append(opts, calibration.WithCommands(display.ReadCommands(runCtx, in, logger)))
	}

	controller, err := calibration.NewController(cfg, src, sessions[0], sessions[1], logger, opts...)
	if err != nil {
		return err
	}
	if err := controller.Run(runCtx); err != nil {
		return err
	}
	left, right := controller.Left().Last(), controller.Right().Last()
	if left == nil || right == nil {
		return nil
	}
	names, cals := []string{"left", "right"}, []*calibration.Calibration{left, right}
	if err := display.WriteTable(c.App.Writer, names, cals); err != nil {
		return err
	}
	if path := c.Path(calibrateFlagChart); path != "" {
		if err := display.WriteErrorChart(path, names, cals); err != nil {
			return err
		}
		logger.Infow("wrote reprojection error chart", "path", path)
	}
	return nil
}

func undistortAction(c *cli.Context, logger logging.Logger) error {
	data, err := output.Read(c.Path(undistortFlagCalib))
	if err != nil {
		return err
	}
	model, err := data.Model()
	if err != nil {
		return err
	}
	img, err := rimage.ReadImageFromFile(c.Path(undistortFlagInput))
	if err != nil {
		return err
	}
	undistorted, err := model.UndistortImage(img)
	if err != nil {
		return err
	}
	logger.Debugw("undistorted", "input", c.Path(undistortFlagInput), "fx", model.Fx, "fy", model.Fy,
		"flags", data.Flags().String())
	return rimage.WriteImageToFile(c.Path(undistortFlagOutput), undistorted)
}

func boardAction(c *cli.Context, logger logging.Logger) error {
	t, err := pattern.ParseType(c.String(boardFlagPattern))
	if err != nil {
		return err
	}
	spec := pattern.Spec{Type: t, Width: c.Int(boardFlagWidth), Height: c.Int(boardFlagHeight), SquareSize: 1}
	if err := spec.Validate(); err != nil {
		return err
	}
	img, _, err := pattern.Render(spec, c.Int(boardFlagPixelsPerUnit))
	if err != nil {
		return err
	}
	logger.Infow("rendered target", "pattern", spec.Type, "size", img.Bounds().Size())
	return rimage.WriteImageToFile(c.Path(boardFlagOutput), img)
}
