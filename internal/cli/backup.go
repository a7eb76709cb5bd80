package cli

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hupe1980/vecqueue"
	"github.com/hupe1980/vecqueue/blobstore"
	"github.com/hupe1980/vecqueue/blobstore/minio"
	s3store "github.com/hupe1980/vecqueue/blobstore/s3"
)

// Blob store targets accepted by --target.
const (
	TargetLocal = "local"
	TargetS3    = "s3"
	TargetMinio = "minio"
)

// BlobOptions selects where backups are stored.
type BlobOptions struct {
	Target    string
	Dir       string
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

func addBlobFlags(fs *pflag.FlagSet) {
	fs.String("target", TargetLocal, "backup target (local|s3|minio)")
	fs.String("dir", "./vecqueue-backups", "backup directory for the local target")
	fs.String("bucket", "", "bucket for the s3 and minio targets")
	fs.String("prefix", "", "key prefix inside the bucket")
	fs.String("region", "", "AWS region for the s3 target (default: from the environment)")
	fs.String("endpoint", "", "endpoint for the minio target, host:port")
	fs.String("access-key", "", "access key for the minio target")
	fs.String("secret-key", "", "secret key for the minio target")
	fs.Bool("secure", true, "use TLS for the minio target")
}

func (o *RootOptions) blobOptions() BlobOptions {
	v := o.config()
	return BlobOptions{
		Target:    v.GetString("target"),
		Dir:       v.GetString("dir"),
		Bucket:    v.GetString("bucket"),
		Prefix:    v.GetString("prefix"),
		Region:    v.GetString("region"),
		Endpoint:  v.GetString("endpoint"),
		AccessKey: v.GetString("access-key"),
		SecretKey: v.GetString("secret-key"),
		Secure:    v.GetBool("secure"),
	}
}

// NewBlobStore creates the blob store selected by opts.
func NewBlobStore(ctx context.Context, opts BlobOptions) (blobstore.BlobStore, error) {
	switch opts.Target {
	case TargetLocal:
		return blobstore.NewLocalStore(opts.Dir), nil
	case TargetS3:
		if opts.Bucket == "" {
			return nil, fmt.Errorf("--bucket is required for target %s", opts.Target)
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if opts.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3store.NewStore(s3.NewFromConfig(cfg), opts.Bucket, opts.Prefix), nil
	case TargetMinio:
		if opts.Bucket == "" || opts.Endpoint == "" {
			return nil, fmt.Errorf("--bucket and --endpoint are required for target %s", opts.Target)
		}
		client, err := miniogo.New(opts.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
			Secure: opts.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return minio.NewStore(client, opts.Bucket, opts.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown target %q", opts.Target)
	}
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <name>",
		Short: "Write live pending inserts to a blob store",
		Long: `Write every live pending insert to the blob <name> on the selected target.

Example:
  vecqueue backup nightly.vqbk --compression-codec zstd
  vecqueue backup nightly.vqbk --target s3 --bucket my-bucket --prefix queues/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			compression, err := vecqueue.ParseCompression(root.config().GetString("compression-codec"))
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --compression-codec", err)
			}
			bs, err := NewBlobStore(cmd.Context(), root.blobOptions())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid backup target", err)
			}

			q, err := root.openQueue(cmd.Context(), vecqueue.WithBackupIOLimit(root.config().GetInt64("io-limit")))
			if err != nil {
				return err
			}
			defer q.Close()

			n, err := q.Backup(cmd.Context(), bs, args[0], vecqueue.WithBackupCompression(compression))
			if err != nil {
				return WrapExitError(ExitFailure, "backup failed", err)
			}
			return root.formatter(cmd).Record(map[string]any{"name": args[0], "records": n},
				fmt.Sprintf("backed up %d records to %s", n, args[0]))
		},
	}

	addBlobFlags(cmd.Flags())
	cmd.Flags().String("compression-codec", "zstd", "backup compression (none|lz4|zstd)")
	cmd.Flags().Int64("io-limit", 0, "maximum bytes per second (0 = unlimited)")
	return cmd
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Replay a backup into the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bs, err := NewBlobStore(cmd.Context(), root.blobOptions())
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid backup target", err)
			}

			q, err := root.openQueue(cmd.Context(), vecqueue.WithBackupIOLimit(root.config().GetInt64("io-limit")))
			if err != nil {
				return err
			}
			defer q.Close()

			n, err := q.Restore(cmd.Context(), bs, args[0])
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("restore failed after %d records", n), err)
			}
			return root.formatter(cmd).Record(map[string]any{"name": args[0], "records": n},
				fmt.Sprintf("restored %d records from %s", n, args[0]))
		},
	}

	addBlobFlags(cmd.Flags())
	cmd.Flags().Int64("io-limit", 0, "maximum bytes per second (0 = unlimited)")
	return cmd
}
