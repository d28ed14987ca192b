// acpctl is a thin command-line wrapper over the ACP client library:
// connect, authenticate, and issue property/feature/firmware operations
// against a single AirPort base station.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nlowe/acpctl/internal/client"
	"github.com/nlowe/acpctl/internal/property"
	"github.com/nlowe/acpctl/internal/utils"
)

// Version information
const Version = "1.0.0"

// Persistent connection flags, shared by every subcommand.
var (
	host     string
	port     int
	password string
	debug    bool
	noColor  bool
	timeout  time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "acpctl",
		Short:   "acpctl - Configure and monitor AirPort base stations over ACP",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "", "ACP device host or IP (required)")
	rootCmd.PersistentFlags().IntVar(&port, "port", 5009, "ACP device port")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Device admin password")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI colors in log output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-request timeout")

	rootCmd.AddCommand(
		newConnectCmd(),
		newGetCmd(),
		newSetCmd(),
		newFeaturesCmd(),
		newFlashCmd(),
		newRebootCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClient builds a Client from the persistent flags and validates that
// --host was supplied.
func newClient() (*client.Client, error) {
	if host == "" {
		return nil, fmt.Errorf("--host is required")
	}
	return client.New(host, port, password,
		client.WithDebug(debug),
		client.WithNoColor(noColor),
		client.WithRequestTimeout(timeout),
	), nil
}

// connectAndAuthenticate dials and, when a password was supplied, runs the
// SRP handshake before handing control to fn.
func connectAndAuthenticate(ctx context.Context, fn func(*client.Client) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if password != "" {
		if err := c.Authenticate(ctx); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	return fn(c)
}

func newConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect and authenticate, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return connectAndAuthenticate(ctx, func(c *client.Client) error {
				fmt.Printf("[+] Connected to %s:%d\n", host, port)
				return nil
			})
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <tag> [tag...]",
		Short: "Read one or more properties by tag",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return connectAndAuthenticate(ctx, func(c *client.Client) error {
				props, err := c.GetProperties(ctx, args)
				if err != nil {
					return fmt.Errorf("get properties: %w", err)
				}
				for _, p := range props {
					fmt.Printf("%s = %s\n", p.Name, p.AsString())
				}
				return nil
			})
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <tag>=<value> [tag=value...]",
		Short: "Write one or more properties",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := parseAssignments(args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return connectAndAuthenticate(ctx, func(c *client.Client) error {
				acks, err := c.SetProperties(ctx, props)
				if err != nil {
					return fmt.Errorf("set properties: %w", err)
				}
				fmt.Printf("[+] %d properties acknowledged\n", len(acks))
				return nil
			})
		},
	}
}

func parseAssignments(args []string) ([]property.Property, error) {
	props := make([]property.Property, 0, len(args))
	for _, arg := range args {
		tag, value, ok := splitAssignment(arg)
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q, want tag=value", arg)
		}
		p, err := property.New(tag, value)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

func splitAssignment(arg string) (tag, value string, ok bool) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == '=' {
			return arg[:i], arg[i+1:], true
		}
	}
	return "", "", false
}

func newFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Enumerate device-supported features",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return connectAndAuthenticate(ctx, func(c *client.Client) error {
				features, err := c.GetFeatures(ctx)
				if err != nil {
					return fmt.Errorf("get features: %w", err)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(features)
			})
		},
	}
}

func newFlashCmd() *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "flash",
		Short: "Upload a primary firmware image",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(imagePath)
			if err != nil {
				return fmt.Errorf("open image: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat image: %w", err)
			}

			fmt.Printf("[>] Uploading %s firmware image\n", utils.FormatFileSize(info.Size()))
			bar := progressbar.DefaultBytes(info.Size(), "uploading firmware")
			reader := io.TeeReader(f, bar)

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			start := time.Now()
			return connectAndAuthenticate(ctx, func(c *client.Client) error {
				reply, err := c.FlashPrimary(ctx, reader, info.Size())
				if err != nil {
					return fmt.Errorf("flash primary: %w", err)
				}
				fmt.Printf("\n[+] Device replied with %s in %s\n",
					utils.FormatFileSize(int64(len(reply))), utils.DeltaTime(time.Since(start)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the firmware image to upload (required)")
	cmd.MarkFlagRequired("image")
	return cmd
}

func newRebootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reboot",
		Short: "Reboot the device",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return connectAndAuthenticate(ctx, func(c *client.Client) error {
				if err := c.Reboot(ctx); err != nil {
					return fmt.Errorf("reboot: %w", err)
				}
				fmt.Println("[+] Reboot requested")
				return nil
			})
		},
	}
}
