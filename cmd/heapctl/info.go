package main

import (
	"github.com/spf13/cobra"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/humanize"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the memory configuration the heaps run with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	})
}

// Info is the memory configuration of heapctl.
type Info struct {
	Backend            string `json:"backend"`
	PageSize           int    `json:"page_size"`
	FramesTotal        int    `json:"frames_total"`
	FramesFree         int    `json:"frames_free"`
	KernelReservation  int    `json:"kernel_reservation"`
	UserGrowthUnit     int    `json:"user_growth_unit"`
	ProcessHeapLimit   int    `json:"process_heap_limit"`
	FreedByteSentinel  byte   `json:"freed_byte_sentinel"`
	MinimumBlockSize   int    `json:"minimum_block_size"`
	BlockAlignmentSize int    `json:"block_alignment"`
}

func runInfo() error {
	m := newMachine()
	defer m.Close()

	info := Info{
		Backend:            m.backend(),
		PageSize:           format.PageSize,
		FramesTotal:        m.pool.Total(),
		FramesFree:         m.pool.Free(),
		KernelReservation:  format.KernelHeapReservation,
		UserGrowthUnit:     format.UserHeapGrowthUnit,
		ProcessHeapLimit:   format.DefaultProcessHeapLimit,
		FreedByteSentinel:  format.FreedByteSentinel,
		MinimumBlockSize:   format.MinBlockSize,
		BlockAlignmentSize: format.BlockAlignment,
	}
	if jsonOut {
		return printJSON(info)
	}

	printInfo("\nMemory configuration\n\n")
	printInfo("  address space:      %s\n", info.Backend)
	printInfo("  page size:          %s\n", humanize.Bytes(info.PageSize))
	printInfo("  physical frames:    %s (%s)\n", humanize.Count(info.FramesTotal), humanize.Bytes(info.FramesTotal*info.PageSize))
	printInfo("  kernel reservation: %s\n", humanize.Bytes(info.KernelReservation))
	printInfo("  user growth unit:   %s\n", humanize.Bytes(info.UserGrowthUnit))
	printInfo("  process heap limit: %s\n", humanize.Bytes(info.ProcessHeapLimit))
	printInfo("  blocks:             %d-byte minimum, %d-byte aligned\n", info.MinimumBlockSize, info.BlockAlignmentSize)
	printInfo("  freed byte poison:  %#x\n", info.FreedByteSentinel)
	return nil
}
