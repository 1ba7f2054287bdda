// Command orcactl runs maintenance jobs against the orca-tagsdb database: migrations, seeding,
// version promotion, tag sync, audit replay and metric export.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/google/uuid"
	"github.com/localnerve/orca-tagsdb/data"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/database"
	"github.com/localnerve/orca-tagsdb/internal/logger"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/services"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// env is what every subcommand shares, opened lazily by the root pre-run
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

func (e *env) open() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return err
	}
	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	e.cfg, e.log, e.db = cfg, log, db
	return nil
}

func (e *env) close() {
	if e.db != nil {
		if err := database.Close(e.db); err != nil {
			e.log.Warn("close database", zap.Error(err))
		}
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}

// audited runs fn between the before and after snapshots of the given entities, as the
// system user, so CLI mutations land in the audit trail and the shared folder metrics.
func (e *env) audited(ctx context.Context, action, entity string, ids []uint, fn func() error) error {
	sink, closeSink, err := services.NewAuditSink(e.cfg, e.db)
	if err != nil {
		return err
	}
	defer func() { _ = closeSink() }()

	engine := services.NewAuditEngine(e.cfg, e.db, sink, services.NewReconciler(e.db, e.log), e.log)
	capture := engine.Begin(ctx, services.AuditMeta{
		RequestID: uuid.NewString(),
		UserName:  services.SystemUser,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}, entity, ids)

	if err := fn(); err != nil {
		return err
	}
	capture.Commit(ctx, 0)
	return nil
}

func systemPrincipal() services.Principal {
	return services.Principal{Username: services.SystemUser, Role: models.RoleProgrammer}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "orcactl",
		Short:         "Maintenance jobs for orca-tagsdb",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			e.close()
		},
	}

	root.AddCommand(
		migrateCmd(e),
		seedCmd(e),
		promoteCmd(e),
		syncCmd(e),
		replayCmd(e),
		exportCmd(e),
	)
	return root
}

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := database.AutoMigrate(e.db); err != nil {
				return err
			}
			e.log.Info("schema migrated", zap.String("db_type", e.cfg.DBType))
			return nil
		},
	}
}

func seedCmd(e *env) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the reference sources, and optionally the demo hierarchy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := database.AutoMigrate(e.db); err != nil {
				return err
			}
			if err := database.Seed(e.db, data.Reference); err != nil {
				return err
			}
			if demo {
				if err := database.Seed(e.db, data.Demo); err != nil {
					return err
				}
			}
			e.log.Info("seeded", zap.Bool("demo", demo))
			return nil
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "also load the demo compounds, users and outputs")
	return cmd
}

func promoteCmd(e *env) *cobra.Command {
	var (
		outputID uint
		in       services.VersionCreate
		size     int64
	)
	cmd := &cobra.Command{
		Use:   "promote-version",
		Short: "Add a new latest version to an output",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("size") {
				in.FileSize = &size
			}
			store, err := services.NewObjectStore(e.cfg)
			if err != nil {
				return err
			}
			outputs := services.NewOutputService(e.cfg, e.db, store, e.log)

			ctx := cmd.Context()
			var version *models.OutputDetailVersion
			err = e.audited(ctx, models.ActionUpdate, services.EntityOutputDetail, []uint{outputID}, func() error {
				var err error
				version, err = outputs.Promote(ctx, outputID, in)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "output %d is now at v%s\n", outputID, version.Version())
			return nil
		},
	}
	cmd.Flags().UintVar(&outputID, "output", 0, "output id")
	cmd.Flags().IntVar(&in.VersionMajor, "major", 0, "major version")
	cmd.Flags().IntVar(&in.VersionMinor, "minor", 0, "minor version")
	cmd.Flags().IntVar(&in.VersionPatch, "patch", 0, "patch version")
	cmd.Flags().StringVar(&in.FilePath, "path", "", "file path of the new version")
	cmd.Flags().Int64Var(&size, "size", 0, "file size in bytes; read from storage when omitted")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func syncCmd(e *env) *cobra.Command {
	var (
		tagID     uint
		outputIDs []uint
	)
	cmd := &cobra.Command{
		Use:   "sync-tags",
		Short: "Copy a tag onto the latest versions of the outputs that carry it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputs := services.NewOutputService(e.cfg, e.db, nil, e.log)
			req := services.SyncRequest{TagID: types.FlexID(tagID)}
			for _, id := range outputIDs {
				req.OutputIDs = append(req.OutputIDs, types.FlexID(id))
			}

			ctx := cmd.Context()
			var res *services.SyncResult
			err := e.audited(ctx, models.ActionSync, services.EntityTag, []uint{tagID}, func() error {
				var err error
				res, err = outputs.Sync(ctx, systemPrincipal(), req)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s synced outputs: %v\n", res.Message, res.SyncedOutputIDs)
			return nil
		},
	}
	cmd.Flags().UintVar(&tagID, "tag", 0, "tag id")
	cmd.Flags().UintSliceVar(&outputIDs, "output", nil, "limit to these output ids")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func replayCmd(e *env) *cobra.Command {
	var tagID uint
	cmd := &cobra.Command{
		Use:   "replay-audit",
		Short: "Rebuild a tag's shared folder metrics from its audit trail",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reporting := services.NewReportingService(e.db, e.log)
			n, err := reporting.ReplayTag(cmd.Context(), services.NewReconciler(e.db, e.log), tagID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d audit batches for tag %d\n", n, tagID)
			return nil
		},
	}
	cmd.Flags().UintVar(&tagID, "tag", 0, "tag id")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func exportCmd(e *env) *cobra.Command {
	var (
		f      services.MetricFilter
		tagID  uint
		output uint
		active string
	)
	cmd := &cobra.Command{
		Use:   "export-metrics",
		Short: "Write shared folder metric rows as CSV to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.TagID, f.OutputID = tagID, output
			switch active {
			case "":
			case "true", "false":
				v := active == "true"
				f.Active = &v
			default:
				return errors.Errorf("--active must be true or false, got %q", active)
			}

			n, err := services.NewReportingService(e.db, e.log).ExportSharedMetrics(cmd.OutOrStdout(), f)
			if err != nil {
				return err
			}
			e.log.Info("exported shared folder metrics", zap.Int("rows", n))
			return nil
		},
	}
	cmd.Flags().UintVar(&tagID, "tag", 0, "tag id")
	cmd.Flags().UintVar(&output, "output", 0, "output id")
	cmd.Flags().StringVar(&f.User, "user", "", "recipient username")
	cmd.Flags().StringVar(&active, "active", "", "true for open rows, false for closed rows")
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "orcactl: %v\n", err)
		os.Exit(1)
	}
}
