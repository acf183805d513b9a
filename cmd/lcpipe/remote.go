package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/config"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/remote"
)

var (
	remoteOptionsFile string
	remoteArchive     string
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Move data between local disk and remote storage",
	Long: `Push and pull files or directory trees to and from a WebDAV server.

Client options (webdav_hostname, webdav_login, webdav_password, webdav_root,
webdav_timeout, authenticationfile) are read from the file given by
--options or remote.options_file in the configuration. With --archive a
local directory stands in for the server.`,
}

var remotePushCmd = &cobra.Command{
	Use:   "push <local> <remote>",
	Short: "Upload a file or directory tree",
	Long: `Upload a local file into an existing remote directory, or a local
directory tree onto a remote directory. Remote directories are created as
needed and existing remote files are replaced.`,
	Args: cobra.ExactArgs(2),
	RunE: runRemotePush,
}

var remotePullCmd = &cobra.Command{
	Use:   "pull <local> <remote>",
	Short: "Download a file or directory tree",
	Long: `Download a remote directory tree to a local directory that must not
exist yet, or a remote file into an existing local directory.`,
	Args: cobra.ExactArgs(2),
	RunE: runRemotePull,
}

var remotePurgeCmd = &cobra.Command{
	Use:   "purge <local>",
	Short: "Delete a local file or directory tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemotePurge,
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteOptionsFile, "options", "", "WebDAV client options file (default: remote.options_file)")
	remoteCmd.PersistentFlags().StringVar(&remoteArchive, "archive", "", "Use a local directory as the remote store")

	remoteCmd.AddCommand(remotePushCmd)
	remoteCmd.AddCommand(remotePullCmd)
	remoteCmd.AddCommand(remotePurgeCmd)
}

// openStore builds the remote store selected by the flags and configuration.
func openStore() (remote.Store, string, error) {
	if remoteArchive != "" {
		s, err := remote.NewLocalStore(remoteArchive)
		if err != nil {
			return nil, "", err
		}
		return s, s.Root, nil
	}

	optsPath := remoteOptionsFile
	if optsPath == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, "", err
		}
		optsPath = cfg.Remote.OptionsFile
	}
	if optsPath == "" {
		return nil, "", failure.Configf("no remote options file: pass --options or set remote.options_file")
	}

	opts, err := config.LoadRemoteOptions(optsPath)
	if err != nil {
		return nil, "", err
	}
	s, err := remote.NewWebDAVStore(opts)
	if err != nil {
		return nil, "", err
	}
	return s, s.URL(), nil
}

func runRemotePush(cmd *cobra.Command, args []string) error {
	local, dest := args[0], args[1]

	fi, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return failure.NotFound("local path", local)
		}
		return err
	}

	s, where, err := openStore()
	if err != nil {
		return err
	}

	if fi.IsDir() {
		err = remote.PushDirectory(cmd.Context(), s, local, dest)
	} else {
		err = remote.PushFile(cmd.Context(), s, filepath.Dir(local), dest, filepath.Base(local))
	}
	if err != nil {
		return err
	}

	printStatus("✓", fmt.Sprintf("pushed %s to %s%s", local, where, path.Clean("/"+dest)), color.FgGreen)
	return nil
}

func runRemotePull(cmd *cobra.Command, args []string) error {
	local, src := args[0], args[1]

	s, where, err := openStore()
	if err != nil {
		return err
	}

	isDir, err := s.IsDir(src)
	if err != nil {
		return err
	}
	if isDir {
		err = remote.PullDirectory(cmd.Context(), s, local, src)
	} else {
		err = pullFileInto(cmd, s, local, src)
	}
	if err != nil {
		return err
	}

	printStatus("✓", fmt.Sprintf("pulled %s%s to %s", where, path.Clean("/"+src), local), color.FgGreen)
	return nil
}

// pullFileInto downloads the remote file src into the existing directory local.
func pullFileInto(cmd *cobra.Command, s remote.Store, local, src string) error {
	fi, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return failure.NotFound("local directory", local)
		}
		return err
	}
	if !fi.IsDir() {
		return failure.Conflict(local, "not a directory")
	}

	ok, err := s.Exists(src)
	if err != nil {
		return err
	}
	if !ok {
		return failure.NotFound("remote path", src)
	}
	return remote.PullFile(cmd.Context(), s, local, path.Dir(src), path.Base(src))
}

func runRemotePurge(cmd *cobra.Command, args []string) error {
	if err := remote.PurgeLocal(args[0]); err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("purged %s", args[0]), color.FgGreen)
	return nil
}
