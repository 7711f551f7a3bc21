package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/longplay/lpvc"
	"github.com/longplay/lpvc/internal/container"
	"github.com/longplay/lpvc/internal/imageio"
)

type EncodeOptions struct {
	Output string
}

// encoderKeys maps encoder option keys to their flags and environment
// variables.
var encoderKeys = []struct {
	key, flag, env string
}{
	{"usePalette", "use-palette", "LPVC_USE_PALETTE"},
	{"compressionLevel", "compression-level", "LPVC_COMPRESSION_LEVEL"},
	{"workerCount", "threads", "LPVC_THREADS"},
	{"gopSize", "gop-size", "LPVC_GOP_SIZE"},
	{"gopResetOnKeyFrame", "gop-reset-on-key-frame", "LPVC_GOP_RESET_ON_KEY_FRAME"},
}

func newEncodeCommand(a *app) *cobra.Command {
	opts := &EncodeOptions{}

	cmd := &cobra.Command{
		Use:   "encode [flags] <image>...",
		Short: "Encode images into an LPVC stream",
		Long:  "Encode a sequence of equally sized images, in argument order, into one LPVC stream file.",
		Example: `  lpvc encode -o screen.lpvs frame-*.png
  lpvc encode --gop-size 300 --compression-level 19 -o screen.lpvs frames/*.qoi
  LPVC_THREADS=8 lpvc encode -o screen.lpvs frame-*.png`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runEncode(opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Output, "output", "o", "out.lpvs", "Output stream file")
	flags.Bool("use-palette", true, "Use palette coding for frames with few colors")
	flags.String("compression-level", "default", "zstd level 1-22, or default")
	flags.Int("threads", 1, "Compression worker count")
	flags.Int("gop-size", 0, "Force a key frame every N frames (0 disables)")
	flags.Bool("gop-reset-on-key-frame", false, "Restart the key frame count on every key frame")

	for _, k := range encoderKeys {
		_ = a.v.BindPFlag(k.key, flags.Lookup(k.flag))
		_ = a.v.BindEnv(k.key, k.env)
	}

	return cmd
}

func (a *app) runEncode(opts *EncodeOptions, inputs []string) (err error) {
	cfg, err := lpvc.ParseConfig(a.v.AllSettings())
	if err != nil {
		return err
	}

	first, err := imageio.Load(inputs[0])
	if err != nil {
		return err
	}
	info := first.Info()

	enc, err := lpvc.OpenEncoder(info, cfg, lpvc.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer enc.Close()

	out, err := os.Create(opts.Output)
	if err != nil {
		return err
	}
	w, err := container.NewWriter(out, info)
	if err != nil {
		return multierr.Append(err, out.Close())
	}
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	log := a.log.WithFields(logrus.Fields{
		"function": "runEncode",
		"output":   opts.Output,
	})
	log.WithFields(logrus.Fields{
		"size":   info.String(),
		"frames": len(inputs),
		"config": cfg,
	}).Info("Encoding")

	var pkt lpvc.Packet
	var total, keys int
	for i, path := range inputs {
		frame := first
		if i > 0 {
			f, err := imageio.Load(path)
			if err != nil {
				return err
			}
			frame = f
		}
		if frame.Info() != info {
			return errors.Errorf("%s is %s, stream is %s", path, frame.Info(), info)
		}

		res, err := enc.EncodeOne(frame, &pkt)
		if err != nil {
			return errors.Wrapf(err, "%s", path)
		}
		if err := w.WritePacket(&pkt); err != nil {
			return err
		}

		total += res.BytesWritten
		if res.KeyFrame {
			keys++
		}
		log.WithFields(logrus.Fields{
			"frame": i,
			"input": path,
			"bytes": res.BytesWritten,
			"key":   res.KeyFrame,
		}).Debug("Encoded frame")
	}

	log.WithFields(logrus.Fields{
		"packets":   w.Count(),
		"keyFrames": keys,
		"bytes":     total,
		"ratio":     float64(total) / float64(len(inputs)*len(first.Data)),
	}).Info("Encoded")
	return nil
}
