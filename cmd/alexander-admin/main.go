// Package main is the entry point for the Alexander Gateway admin CLI.
// This tool provides administrative commands for quotas, uploaded files and signature debugging.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	rediscache "github.com/prn-tf/alexander-gateway/internal/cache/redis"
	"github.com/prn-tf/alexander-gateway/internal/config"
	"github.com/prn-tf/alexander-gateway/internal/logging"
	"github.com/prn-tf/alexander-gateway/internal/repository"
	"github.com/prn-tf/alexander-gateway/internal/repository/database"
	"github.com/prn-tf/alexander-gateway/internal/service"
	"github.com/prn-tf/alexander-gateway/internal/sigv4"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	ctx := context.Background()

	var err error
	switch command {
	case "version":
		fmt.Printf("Alexander Gateway Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "quota":
		err = runQuota(ctx, *configPath, args)

	case "files":
		err = runFiles(ctx, *configPath, args)

	case "sign-check":
		err = runSignCheck(*configPath, args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// Setup
// =============================================================================

type env struct {
	admin *service.AdminService
	close func()
}

func setup(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(){func() { _ = db.Database.Close() }}

	// Only a shared cache can be invalidated from here; in-process caches expire on their TTL.
	var cache repository.Cache
	if cfg.Cache.Backend == "redis" {
		rc, err := rediscache.NewCache(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, cached quotas will expire on their TTL")
		} else {
			cache = rc
			closers = append(closers, func() { _ = rc.Close() })
		}
	}

	return &env{
		admin: service.NewAdminService(db.Repos.Quota, db.Repos.File, cache, cfg.Quota.DefaultTotalMB, logger),
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func parseUserID(args []string, usage string) (uuid.UUID, error) {
	if len(args) < 1 {
		return uuid.Nil, fmt.Errorf("usage: %s", usage)
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	return id, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// Commands
// =============================================================================

func runQuota(ctx context.Context, configPath string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: alexander-admin quota get|set|reconcile <user-id> [total-mb]")
	}

	sub, args := args[0], args[1:]
	userID, err := parseUserID(args, "alexander-admin quota "+sub+" <user-id>")
	if err != nil {
		return err
	}

	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close()

	switch sub {
	case "get":
		quota, err := e.admin.GetQuota(ctx, userID)
		if err != nil {
			return err
		}
		return printJSON(quota)

	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: alexander-admin quota set <user-id> <total-mb>")
		}
		totalMB, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid total %q: %w", args[1], err)
		}
		quota, err := e.admin.SetQuota(ctx, userID, totalMB)
		if err != nil {
			return err
		}
		return printJSON(quota)

	case "reconcile":
		res, err := e.admin.Reconcile(ctx, userID)
		if err != nil {
			return err
		}
		fmt.Printf("used_storage_mb: %.6f -> %.6f (%d bytes recorded)\n", res.PreviousMB, res.Quota.UsedStorageMB, res.TotalBytes)
		return nil

	default:
		return fmt.Errorf("unknown quota command %q", sub)
	}
}

func runFiles(ctx context.Context, configPath string, args []string) error {
	if len(args) < 1 || args[0] != "list" {
		return fmt.Errorf("usage: alexander-admin files list [-limit n] [-offset n] <user-id>")
	}

	fs := flag.NewFlagSet("files list", flag.ContinueOnError)
	limit := fs.Int("limit", repository.DefaultListLimit, "maximum number of files")
	offset := fs.Int("offset", 0, "number of files to skip")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	userID, err := parseUserID(fs.Args(), "alexander-admin files list <user-id>")
	if err != nil {
		return err
	}

	e, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer e.close()

	files, err := e.admin.ListFiles(ctx, userID, repository.ListOptions{Limit: *limit, Offset: *offset})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tBYTES\tMB\tTYPE\tPATH")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%d\t%.6f\t%s\t%s\n", f.CreatedAt.Format(time.RFC3339), f.FileSize, f.SizeMB(), f.FileType, f.StoragePath)
	}
	return tw.Flush()
}

// runSignCheck prints the canonical request, string to sign and Authorization
// the gateway would send, and optionally checks a captured Authorization header.
func runSignCheck(configPath string, args []string) error {
	fs := flag.NewFlagSet("sign-check", flag.ContinueOnError)
	method := fs.String("method", http.MethodGet, "HTTP method")
	target := fs.String("url", "", "full request URL, e.g. https://s3.wasabisys.com/user-<id>-storage/")
	date := fs.String("date", "", "X-Amz-Date to sign with (default: now; required with -authorization)")
	payload := fs.String("payload", "", "payload hash (default: SHA-256 of the empty string; use UNSIGNED-PAYLOAD for uploads)")
	authz := fs.String("authorization", "", "captured Authorization header to verify")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *target == "" {
		return fmt.Errorf("usage: alexander-admin sign-check -url <url> [-method m] [-date d] [-payload p] [-authorization a]")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !cfg.ObjectStore.Configured() {
		return fmt.Errorf("object_store.access_key_id and object_store.secret_access_key must be set")
	}

	signTime, err := signCheckTime(*date, *authz, time.Now())
	if err != nil {
		return err
	}

	creds := sigv4.Credentials{
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
		Region:          cfg.ObjectStore.Region,
	}
	exp, err := sigv4.Explain(creds, strings.ToUpper(*method), *target, signTime, *payload)
	if err != nil {
		return err
	}

	fmt.Printf("Canonical request:\n%s\n\n", exp.CanonicalRequest)
	fmt.Printf("String to sign:\n%s\n\n", exp.StringToSign)
	fmt.Printf("Authorization:\n%s\n", exp.Authorization)

	if *authz == "" {
		return nil
	}

	req, err := http.NewRequest(strings.ToUpper(*method), *target, nil)
	if err != nil {
		return err
	}
	payloadHash := *payload
	if payloadHash == "" {
		payloadHash = sigv4.EmptyStringSHA256
	}
	req.Header.Set(sigv4.AuthorizationHeader, *authz)
	req.Header.Set(sigv4.XAmzDateHeader, sigv4.AmzDate(signTime))
	req.Header.Set(sigv4.XAmzContentSHA256Header, payloadHash)

	if _, err := sigv4.VerifyRequest(req, sigv4.StaticSecret(creds.AccessKeyID, creds.SecretAccessKey)); err != nil {
		return fmt.Errorf("captured signature does not verify: %w", err)
	}
	fmt.Println("\nCaptured signature verifies.")
	return nil
}

// signCheckTime picks the signing instant. A captured Authorization header only
// verifies against the exact X-Amz-Date it was signed with, so -date is then required.
func signCheckTime(date, authorization string, now time.Time) (time.Time, error) {
	if date == "" {
		if authorization != "" {
			return time.Time{}, fmt.Errorf("-date is required with -authorization (use the X-Amz-Date of the captured request)")
		}
		return now.UTC(), nil
	}
	t, err := time.Parse(sigv4.ISO8601BasicFormat, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

func printUsage() {
	fmt.Println(`Alexander Gateway Admin CLI

Usage:
  alexander-admin [-config path] <command> [arguments]

Commands:
  quota get <user-id>                 Show a user's quota
  quota set <user-id> <total-mb>      Change a user's quota ceiling
  quota reconcile <user-id>           Recompute used storage from recorded files
  files list [-limit n] <user-id>     List a user's uploaded files
  sign-check -url <url> [...]         Show how the gateway signs a request
  version                             Print version information
  help                                Show this help message

Examples:
  alexander-admin quota set 5f0c7a3e-2b8d-4d51-9a0e-7c1f3e6b2a90 2048
  alexander-admin files list -limit 20 5f0c7a3e-2b8d-4d51-9a0e-7c1f3e6b2a90
  alexander-admin sign-check -method PUT -url https://s3.wasabisys.com/user-<id>-storage`)
}
