package main

import (
	"fmt"
	"strconv"

	"github.com/nigersavoir/savoir-client/internal/config"
	"github.com/nigersavoir/savoir-client/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "savoirctl",
		Short: "Command line client for the Savoir marketplace",
		Long: `savoirctl signs in to the Savoir platform, manages the local cart,
places orders and reacts to books and documents.

State (session and cart) lives in the store selected by SAVOIR_STORE and is
shared with every other savoirctl process using the same store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newCartCmd(a),
		newCheckoutCmd(a),
		newReactCmd(a),
		newBooksCmd(a),
		newDocumentsCmd(a),
		newDownloadCmd(a),
		newUploadCmd(a),
		newWatchCmd(a),
		newDevServerCmd(a),
	)
	return root
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", raw)
	}
	return id, nil
}
