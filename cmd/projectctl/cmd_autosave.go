package main

import (
	"fmt"

	"projectstore/internal/storage"

	"github.com/spf13/cobra"
)

func newAutoSaveCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autosave",
		Short: "Manage the local autosave cache",
		Long: `Autosaves are kept on this machine until the project is saved.

Available subcommands:
  save  - Store a snapshot of a project
  check - Tell whether an autosave newer than the saved project exists
  burst - Delete every autosave`,
	}
	cmd.AddCommand(newAutoSaveSaveCmd(opts), newAutoSaveCheckCmd(opts), newAutoSaveBurstCmd(opts))
	return cmd
}

func autoSaveOperations(opts *options, e *env) (storage.AutoSaveOperations, error) {
	ops, err := e.operations(opts.provider)
	if err != nil {
		return nil, err
	}
	autoSave, ok := storage.AsAutoSave(ops)
	if !ok {
		return nil, fmt.Errorf("%s: %w", opts.provider, storage.ErrUnsupported)
	}
	return autoSave, nil
}

func newAutoSaveSaveCmd(opts *options) *cobra.Command {
	var fileID string
	cmd := &cobra.Command{
		Use:   "save <project.json>",
		Short: "Store a snapshot of a project",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			p, err := readProject(args[0])
			if err != nil {
				return err
			}
			autoSave, err := autoSaveOperations(opts, e)
			if err != nil {
				return err
			}
			return autoSave.AutoSave(cmd.Context(), p, storage.FileMetadata{FileIdentifier: fileID})
		}),
	}
	cmd.Flags().StringVar(&fileID, "id", "", "file identifier of the project")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAutoSaveCheckCmd(opts *options) *cobra.Command {
	var fileID string
	var lastModified int64
	var compare bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print the date of an autosave worth recovering, if any",
		Args:  cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			autoSave, err := autoSaveOperations(opts, e)
			if err != nil {
				return err
			}
			fm := storage.FileMetadata{FileIdentifier: fileID, LastModifiedDate: lastModified}
			date, err := autoSave.GetAutoSaveCreationDate(cmd.Context(), fm, compare)
			if err != nil {
				return err
			}
			if date == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No autosave to recover.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Autosave from %s. Open it with: projectctl open --autosave %s\n",
				date.Local().Format("2006-01-02 15:04:05"), fileID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&fileID, "id", "", "file identifier of the project")
	cmd.Flags().Int64Var(&lastModified, "last-modified", 0, "last save time of the project, in milliseconds")
	cmd.Flags().BoolVar(&compare, "compare", true, "report an autosave even when --last-modified is not given")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newAutoSaveBurstCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "burst",
		Short: "Delete every autosave",
		Args:  cobra.NoArgs,
		RunE: withEnv(opts, func(cmd *cobra.Command, args []string, e *env) error {
			autoSave, err := autoSaveOperations(opts, e)
			if err != nil {
				return err
			}
			return autoSave.BurstAutoSaveCache(cmd.Context())
		}),
	}
}
