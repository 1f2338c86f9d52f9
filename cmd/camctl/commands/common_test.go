package commands

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"text/tabwriter"

	webcam "github.com/phreda4/webcamlib"
)

func TestPrintOutput(t *testing.T) {
	devs := []webcam.DeviceDescriptor{
		{Index: 0, Name: "Integrated Camera", Path: "/dev/video0"},
		{Index: 2, Name: "USB Camera", Path: "/dev/video2"},
	}
	table := func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "INDEX\tNAME")
		for _, d := range devs {
			fmt.Fprintf(tw, "%d\t%s\n", d.Index, d.Name)
		}
	}

	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"table", "2      USB Camera", false},
		{"", "INDEX  NAME", false},
		{"json", `"path": "/dev/video2"`, false},
		{"yaml", "  path: /dev/video2", false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := printOutput(&buf, tt.format, devs, table)
			if (err != nil) != tt.wantErr {
				t.Fatalf("printOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"list", "caps", "snapshot", "ctrl", "serve", "config"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
