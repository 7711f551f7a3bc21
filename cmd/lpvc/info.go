package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/longplay/lpvc"
	"github.com/longplay/lpvc/internal/container"
)

type InfoOptions struct {
	Packets bool
}

func newInfoCommand(a *app) *cobra.Command {
	opts := &InfoOptions{}

	cmd := &cobra.Command{
		Use:   "info [flags] <stream>",
		Short: "Describe an LPVC stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.OutOrStdout(), opts, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.Packets, "packets", "p", false, "List every packet")

	return cmd
}

func runInfo(out io.Writer, opts *InfoOptions, input string) error {
	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	r, err := container.NewReader(in)
	if err != nil {
		return errors.Wrapf(err, "%s", input)
	}

	tw := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	if opts.Packets {
		fmt.Fprintln(tw, "PACKET\tBYTES\tTYPE")
	}

	var pkt lpvc.Packet
	var total, keys int
	for {
		err := r.ReadPacket(&pkt)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		total += pkt.Size
		kind := "delta"
		if pkt.KeyFrame() {
			keys++
			kind = "key"
		}
		if opts.Packets {
			fmt.Fprintf(tw, "%d\t%d\t%s\n", r.Count()-1, pkt.Size, kind)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	info := r.Info()
	fmt.Fprintf(out, "size:       %s\n", info)
	fmt.Fprintf(out, "packets:    %d\n", r.Count())
	fmt.Fprintf(out, "key frames: %d\n", keys)
	fmt.Fprintf(out, "bytes:      %d\n", total)
	return nil
}
