package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/address-resolver/app/bootstrap"
	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/internal/gazetteer"
	"github.com/address-resolver/internal/parser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrValidationFailed snapshot không qua được kiểm tra.
var ErrValidationFailed = errors.New("snapshot không hợp lệ")

// RootCmd lệnh gốc của worker.
func RootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "address-worker",
		Short:         "Tác vụ offline cho Address Resolver",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "đường dẫn file cấu hình YAML")

	root.AddCommand(
		validateCmd(),
		convertCmd(),
		seedCmd(&configPath),
		publishCmd(&configPath),
		classifyCmd(&configPath),
		resolveCmd(&configPath),
	)
	return root
}

// withApp dựng App từ config, chạy fn rồi đóng kết nối.
func withApp(cmd *cobra.Command, configPath string, fn func(ctx context.Context, app *bootstrap.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := bootstrap.NewLogger(cfg.App.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Warn("Lỗi đóng kết nối", zap.Error(err))
		}
	}()
	return fn(ctx, app)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Kiểm tra snapshot dữ liệu tham chiếu, không ghi gì",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := gazetteer.ReadSnapshotFile(file)
			if err != nil {
				return err
			}
			validation := services.NewAdminService(nil, nil, nil, parser.DefaultResolverConfig(), 0, zap.NewNop()).ValidateReference(snap)
			if err := writeJSON(cmd.OutOrStdout(), validation); err != nil {
				return err
			}
			if !validation.Passed {
				return fmt.Errorf("%w: %d lỗi", ErrValidationFailed, len(validation.Warnings))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "snapshot YAML/JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func seedCmd(configPath *string) *cobra.Command {
	var file string
	var dryRun, publish bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed snapshot vào MongoDB và tùy chọn publish lên Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := gazetteer.ReadSnapshotFile(file)
			if err != nil {
				return err
			}
			return withApp(cmd, *configPath, func(ctx context.Context, app *bootstrap.App) error {
				if validation := app.AdminService.ValidateReference(snap); !validation.Passed {
					_ = writeJSON(cmd.OutOrStdout(), validation)
					return fmt.Errorf("%w: %d lỗi", ErrValidationFailed, len(validation.Warnings))
				}
				if app.Store == nil && !dryRun {
					app.Logger.Warn("Không có MongoDB, seed chỉ có hiệu lực trong process này")
				}
				result, err := app.AdminService.SeedReference(ctx, snap, dryRun, publish)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "snapshot YAML/JSON")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "chỉ kiểm tra, không ghi")
	cmd.Flags().BoolVar(&publish, "publish", false, "đẩy index lên Meilisearch sau khi seed")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func publishCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Đẩy index đang nạp lên Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, app *bootstrap.App) error {
				n, err := app.AdminService.PublishIndex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "đã publish %d document (phiên bản %s)\n", n, app.AddressService.ReferenceVersion())
				return nil
			})
		},
	}
}

func classifyCmd(configPath *string) *cobra.Command {
	var opts services.ClassifyOptions
	var out string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Phân loại nguyên nhân các review bị chấm điểm thấp",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, app *bootstrap.App) error {
				report, err := app.QualityService.ClassifyStored(ctx, opts)
				if err != nil {
					return err
				}
				if out == "" {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := writeJSON(f, report); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	cmd.Flags().IntVar(&opts.MaxRating, "max-rating", 0, "chỉ lấy review có rating <= giá trị này (mặc định theo config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "số review tối đa, 0 = tất cả")
	cmd.Flags().BoolVar(&opts.Rescore, "rescore", false, "resolve lại bằng index hiện tại")
	cmd.Flags().StringVar(&out, "out", "", "ghi báo cáo ra file thay vì stdout")
	return cmd
}

func resolveCmd(configPath *string) *cobra.Command {
	var province, district string
	var trace bool
	cmd := &cobra.Command{
		Use:   "resolve <address>",
		Short: "Resolve một địa chỉ và in kết quả JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, app *bootstrap.App) error {
				res, _, err := app.AddressService.Resolve(ctx, services.ResolveInput{
					Address:     strings.Join(args, " "),
					Province:    province,
					District:    district,
					ReturnTrace: trace,
				})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&province, "province", "", "tỉnh biết trước")
	cmd.Flags().StringVar(&district, "district", "", "quận/huyện biết trước")
	cmd.Flags().BoolVar(&trace, "trace", false, "in trace từng cấp")
	return cmd
}
