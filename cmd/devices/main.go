package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gordonklaus/portaudio"

	"github.com/metalblueberry/chordsnake/pkg/mic"
)

func main() {
	err := portaudio.Initialize()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	devices, err := mic.ListInputDevices()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHOST API\tCHANNELS\tDEFAULT RATE")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.0f\n", d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
	}
	w.Flush()
}
