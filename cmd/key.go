package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/ui"
	"github.com/Mohsinsiddi/idodeploy/internal/wallet"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage deployer keys in the OS keyring",
}

var keyImportCmd = &cobra.Command{
	Use:   "import <network>",
	Short: "Store the deployer private key for a network",
	Long: `Store the deployer private key for a network in the OS keyring.

The key is read without echo from the terminal, or as one line from stdin
when it is piped. On headless Linux an encrypted file backend is used; set
IDO_KEYRING_PASSWORD to unlock it without a prompt.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var hexKey string
		var err error
		if ui.IsTerminal(os.Stdin) {
			hexKey, err = ui.PromptSecret(cmd.ErrOrStderr(), "Private key (hex): ")
		} else {
			hexKey, err = readLine(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		keys, err := openKeystore()
		if err != nil {
			return err
		}
		s, err := loadSettings()
		if err != nil {
			return err
		}
		return importKey(keys, s, args[0], hexKey, cmd.ErrOrStderr())
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show <network>",
	Short: "Print the deployer address for a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := openKeystore()
		if err != nil {
			return err
		}
		s, err := loadSettings()
		if err != nil {
			return err
		}
		return showKey(keys, s, args[0], cmd.OutOrStdout())
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete <network>",
	Short: "Remove the deployer key for a network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ui.IsTerminal(os.Stdin) && !ui.Confirm(os.Stdin, cmd.ErrOrStderr(), "Delete the deployer key for "+args[0]+"?") {
			return nil
		}
		keys, err := openKeystore()
		if err != nil {
			return err
		}
		s, err := loadSettings()
		if err != nil {
			return err
		}
		ref := keyRef(s, args[0])
		if err := keys.Delete(ref); err != nil {
			return fmt.Errorf("deleting %s: %w", ref, err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("Deleted "+ref))
		return nil
	},
}

func openKeystore() (*wallet.Keystore, error) {
	dir, err := keystoreDir()
	if err != nil {
		return nil, err
	}
	return wallet.DefaultKeystore(dir), nil
}

// keyRef is the keyring reference deploy uses for network.
func keyRef(s *config.Settings, network string) string {
	if n, ok := s.Networks[network]; ok && n.Key != "" {
		return n.Key
	}
	return wallet.Ref(network)
}

func importKey(keys wallet.KeyStore, s *config.Settings, network, hexKey string, w io.Writer) error {
	addr, err := wallet.AddressOf(hexKey)
	if err != nil {
		return err
	}
	ref, err := keys.Store(network, hexKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, ui.Success(fmt.Sprintf("Deployer key for %s stored: %s", ui.NetworkName(network), ui.Addr(addr.Hex()))))

	n, ok := s.Networks[network]
	switch {
	case !ok:
		fmt.Fprintln(w, ui.Warn(fmt.Sprintf("network %q is not in %s yet", network, config.DefaultConfigFile)))
	case n.Key != "" && n.Key != ref:
		fmt.Fprintln(w, ui.Warn(fmt.Sprintf("networks.%s.key is %q; set it to %q to use this key", network, n.Key, ref)))
	}
	return nil
}

func showKey(keys wallet.KeyStore, s *config.Settings, network string, w io.Writer) error {
	ref := keyRef(s, network)
	hexKey, err := keys.Retrieve(ref)
	if err != nil {
		return err
	}
	addr, err := wallet.AddressOf(hexKey)
	if err != nil {
		return fmt.Errorf("key %s: %w", ref, err)
	}
	fmt.Fprintln(w, addr.Hex())
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("no key on stdin")
	}
	return line, nil
}

func init() {
	keyCmd.AddCommand(keyImportCmd, keyShowCmd, keyDeleteCmd)
}
