package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/longplay/lpvc"
	"github.com/longplay/lpvc/internal/container"
	"github.com/longplay/lpvc/internal/imageio"
)

type DecodeOptions struct {
	Output string
	Jobs   int
}

func newDecodeCommand(a *app) *cobra.Command {
	opts := &DecodeOptions{}

	cmd := &cobra.Command{
		Use:   "decode [flags] <stream>",
		Short: "Decode an LPVC stream into images",
		Long:  "Decode every packet of an LPVC stream file and write one image per frame. The output format follows the extension of the output pattern.",
		Example: `  lpvc decode screen.lpvs
  lpvc decode -o out/%06d.qoi --jobs 4 screen.lpvs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDecode(cmd.Context(), opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Output, "output", "o", "frame-%05d.png", "Output file pattern, formatted with the frame index")
	flags.IntVarP(&opts.Jobs, "jobs", "j", runtime.NumCPU(), "Number of images written in parallel")

	return cmd
}

func (a *app) runDecode(ctx context.Context, opts *DecodeOptions, input string) error {
	if _, err := imageio.FormatFromPath(opts.Output); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	r, err := container.NewReader(in)
	if err != nil {
		return errors.Wrapf(err, "%s", input)
	}
	info := r.Info()

	dec, err := lpvc.OpenDecoder(info, lpvc.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer dec.Close()

	log := a.log.WithFields(logrus.Fields{
		"function": "runDecode",
		"input":    input,
	})
	log.WithField("size", info.String()).Info("Decoding")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Jobs))

	var pkt lpvc.Packet
	var frame lpvc.Frame
	for i := 0; ctx.Err() == nil; i++ {
		err := r.ReadPacket(&pkt)
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = g.Wait()
			return err
		}

		res, err := dec.DecodeOne(pkt.Bytes(), &frame)
		if err != nil {
			_ = g.Wait()
			return errors.Wrapf(err, "packet %d", i)
		}
		log.WithFields(logrus.Fields{
			"frame": i,
			"bytes": res.BytesConsumed,
			"key":   res.KeyFrame,
		}).Debug("Decoded frame")

		out := frame
		out.Data = append([]byte(nil), frame.Data...)
		path := fmt.Sprintf(opts.Output, i)
		g.Go(func() error {
			return imageio.Save(path, &out)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.WithField("frames", r.Count()).Info("Decoded")
	return nil
}
