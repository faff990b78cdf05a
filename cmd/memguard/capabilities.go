package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitriimaksimovdevelop/memguard/internal/ebpf"
)

func newCapabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "Report native eBPF memory-pressure counter availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := ebpf.DetectBPFCapabilities()
			fmt.Print(ebpf.FormatCapabilities(caps))

			btf := ebpf.DetectBTF()
			fmt.Printf("Kernel: %s\n", btf.KernelVersion)
			fmt.Printf("BTF: %v\n", btf.Available)
			fmt.Printf("CO-RE: %v\n", btf.CORESupport)
			return nil
		},
	}
}
