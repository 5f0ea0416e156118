package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/vocdoni/bonsai-local/circuits/cubic"
	"github.com/vocdoni/bonsai-local/client"
	"github.com/vocdoni/bonsai-local/internal"
	"github.com/vocdoni/bonsai-local/log"
)

const defaultURL = "http://127.0.0.1:8081"

var (
	serverURL = flag.StringP("url", "u", defaultURL, "bonsai-local API URL")
	apiKey    = flag.String("apikey", "", "API key sent as X-API-Key")
	timeout   = flag.Duration("timeout", 10*time.Minute, "timeout for the whole command")
	poll      = flag.Duration("poll", client.DefaultPollInterval, "status polling interval")
	logLevel  = flag.StringP("log.level", "l", "info", "log level (debug, info, warn, error)")
	x         = flag.Uint64("x", 3, "secret value proved by the example command")
	withSnark = flag.Bool("snark", true, "convert the example receipt to a SNARK receipt")
)

func usage() {
	fmt.Fprintf(os.Stderr, "bonsai-cli %s\n\n", internal.Version)
	fmt.Fprintf(os.Stderr, "Usage: bonsai-cli [flags] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  example                   prove x^3+x+5 == y end to end\n")
	fmt.Fprintf(os.Stderr, "  upload <file>             upload a file as an artifact and print its digest\n")
	fmt.Fprintf(os.Stderr, "  session <image> <input>   create a session, wait for it and print its status\n")
	fmt.Fprintf(os.Stderr, "  snark <session>           convert a session receipt and print the SNARK receipt\n")
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.CommandLine.SortFlags = false
	flag.Parse()
	log.Init(*logLevel, "stderr", nil)

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := client.New(*serverURL, client.WithAPIKey(*apiKey), client.WithPollInterval(*poll))
	if err != nil {
		log.Fatalf("invalid client: %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		log.Fatalf("server not reachable at %s: %v", *serverURL, err)
	}

	args := flag.Args()
	switch cmd := args[0]; cmd {
	case "example":
		err = runExample(ctx, c)
	case "upload":
		err = needArgs(args, 1, func() error { return runUpload(ctx, c, args[1]) })
	case "session":
		err = needArgs(args, 2, func() error { return runSession(ctx, c, args[1], args[2]) })
	case "snark":
		err = needArgs(args, 1, func() error { return runSnark(ctx, c, args[1]) })
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		log.Errorw(err, "command failed")
		os.Exit(1)
	}
}

func needArgs(args []string, n int, run func() error) error {
	if len(args)-1 != n {
		return fmt.Errorf("%s expects %d argument(s), got %d", args[0], n, len(args)-1)
	}
	return run()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runExample(ctx context.Context, c *client.Client) error {
	image, err := cubic.Image()
	if err != nil {
		return err
	}
	y := cubic.Solve(*x)
	input, err := cubic.Input(*x, y)
	if err != nil {
		return err
	}
	imageDigest, err := c.UploadImage(ctx, image)
	if err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	inputDigest, err := c.UploadInput(ctx, input)
	if err != nil {
		return fmt.Errorf("upload input: %w", err)
	}
	log.Infow("artifacts uploaded", "image", imageDigest.String(), "input", inputDigest.String(), "y", y)

	start := time.Now()
	sessionID, err := c.CreateSession(ctx, imageDigest.String(), inputDigest.String())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	log.Infow("session created", "id", sessionID)
	status, err := c.WaitSession(ctx, sessionID)
	if err != nil {
		return err
	}
	log.Infow("session succeeded", "id", sessionID, "took", time.Since(start).String(), "receipt", status.ReceiptURL)
	if !*withSnark {
		return printJSON(status)
	}
	return runSnark(ctx, c, sessionID)
}

func runUpload(ctx context.Context, c *client.Client, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	digest, err := c.UploadImage(ctx, data)
	if err != nil {
		return err
	}
	fmt.Println(digest.String())
	return nil
}

func runSession(ctx context.Context, c *client.Client, image, input string) error {
	id, err := c.CreateSession(ctx, image, input)
	if err != nil {
		return err
	}
	log.Infow("session created", "id", id)
	status, err := c.WaitSession(ctx, id)
	if status != nil {
		if perr := printJSON(status); perr != nil {
			return perr
		}
	}
	return err
}

func runSnark(ctx context.Context, c *client.Client, sessionID string) error {
	id, err := c.CreateSnark(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("create snark: %w", err)
	}
	log.Infow("snark conversion created", "id", id, "session", sessionID)
	if _, err := c.WaitSnark(ctx, id); err != nil {
		return err
	}
	receipt, err := c.SnarkReceipt(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(receipt)
}
