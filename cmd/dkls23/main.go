// Command dkls23 drives threshold DKG, key refresh, signing, and BIP32
// derivation against a mailbox relay.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/derive"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dkg"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dklserr"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/dsg"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/keyshare"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/party"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/relay"
	"github.com/chillaharish2023/dkls23-rs-mpc-signer/pkg/session"
)

var (
	relayURL   string
	selfID     uint32
	partyList  string
	threshold  int
	sessionID  string
	keyFile    string
	outFile    string
	timeoutSec int
	derivePath string
)

var rootCmd = &cobra.Command{
	Use:   "dkls23",
	Short: "Threshold ECDSA (DKLs23) key generation and signing",
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Run distributed key generation",
	RunE:  runKeygen,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh an existing key share without changing the public key",
	RunE:  runRefresh,
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a message hash with a quorum of signers",
	RunE:  runSign,
}

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive a non-hardened BIP32 child key share",
	RunE:  runDerive,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print key share metadata",
	RunE:  runInfo,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay", envOr("RELAY_URL", "http://localhost:8080"), "mailbox relay base URL")
	rootCmd.PersistentFlags().Uint32Var(&selfID, "party-id", envOrUint32("PARTY_ID", 0), "this party's id")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "session identifier shared by all participants")
	rootCmd.PersistentFlags().IntVar(&timeoutSec, "timeout", 60, "protocol timeout in seconds")

	keygenCmd.Flags().StringVar(&partyList, "parties", "", "comma-separated party ids (required)")
	keygenCmd.Flags().IntVarP(&threshold, "threshold", "t", 0, "signing threshold (required)")
	keygenCmd.Flags().StringVarP(&outFile, "output", "o", "keyshare.json", "output key share path")
	_ = keygenCmd.MarkFlagRequired("parties")
	_ = keygenCmd.MarkFlagRequired("threshold")

	refreshCmd.Flags().StringVarP(&keyFile, "key", "k", "", "existing key share path (required)")
	refreshCmd.Flags().StringVarP(&outFile, "output", "o", "", "output key share path (defaults to overwriting --key)")
	_ = refreshCmd.MarkFlagRequired("key")

	signCmd.Flags().StringVarP(&keyFile, "key", "k", "", "key share path (required)")
	signCmd.Flags().String("message", "", "hex-encoded message digest to sign (required)")
	signCmd.Flags().StringVar(&partyList, "parties", "", "comma-separated signer ids (defaults to this share's full party set)")
	signCmd.Flags().StringVarP(&outFile, "output", "o", "", "output signature path (DER, stdout if empty)")
	_ = signCmd.MarkFlagRequired("key")
	_ = signCmd.MarkFlagRequired("message")

	deriveCmd.Flags().StringVarP(&keyFile, "key", "k", "", "parent key share path (required)")
	deriveCmd.Flags().StringVar(&derivePath, "path", "", "BIP32 non-hardened derivation path, e.g. m/0/1/42 (required)")
	deriveCmd.Flags().StringVarP(&outFile, "output", "o", "", "output key share path (required)")
	_ = deriveCmd.MarkFlagRequired("key")
	_ = deriveCmd.MarkFlagRequired("path")
	_ = deriveCmd.MarkFlagRequired("output")

	infoCmd.Flags().StringVarP(&keyFile, "key", "k", "", "key share path (required)")
	_ = infoCmd.MarkFlagRequired("key")

	rootCmd.AddCommand(keygenCmd, refreshCmd, signCmd, deriveCmd, infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a failure to the process exit code callers script
// against: 2 for a malformed session/CLI configuration, 1 for every other
// protocol failure.
func exitCodeFor(err error) int {
	var derr *dklserr.Error
	if errors.As(err, &derr) {
		switch derr.Kind {
		case dklserr.KindInvalidConfig, dklserr.KindInvalidPartyID, dklserr.KindInsufficientParties:
			return 2
		}
	}
	return 1
}

func parsePartyList(s string) (party.IDSlice, error) {
	var out party.IDSlice
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid party id %q: %w", part, err)
		}
		out = append(out, party.ID(v))
	}
	return out, nil
}

func newSessionConfig(self party.ID, parties party.IDSlice, t int) session.Config {
	return session.Config{
		SessionID: session.ID(sessionID),
		Self:      self,
		Parties:   parties,
		Threshold: t,
	}
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	parties, err := parsePartyList(partyList)
	if err != nil {
		return err
	}
	cfg := newSessionConfig(party.ID(selfID), parties, threshold)
	r := relay.NewHTTPRelay(relayURL, cfg.SessionID, cfg.Self)

	ctx, cancel := withTimeout()
	defer cancel()

	ks, err := dkg.Run(ctx, cfg, r, dkg.ModeKeygen, nil)
	if err != nil {
		return err
	}
	if err := keyshare.Save(outFile, ks); err != nil {
		return err
	}
	slog.Info("keygen complete", "output", outFile, "public_key", hex.EncodeToString(ks.PublicKey[:]))
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	existing, err := keyshare.Load(keyFile)
	if err != nil {
		return err
	}
	cfg := newSessionConfig(existing.Self, existing.Parties, existing.Threshold)
	r := relay.NewHTTPRelay(relayURL, cfg.SessionID, cfg.Self)

	ctx, cancel := withTimeout()
	defer cancel()

	ks, err := dkg.Run(ctx, cfg, r, dkg.ModeRefresh, existing)
	if err != nil {
		return err
	}
	dest := outFile
	if dest == "" {
		dest = keyFile
	}
	if err := keyshare.Save(dest, ks); err != nil {
		return err
	}
	slog.Info("refresh complete", "output", dest, "generation", ks.Generation)
	return nil
}

func runSign(cmd *cobra.Command, args []string) error {
	ks, err := keyshare.Load(keyFile)
	if err != nil {
		return err
	}
	msgHex, _ := cmd.Flags().GetString("message")
	digestBytes, err := hex.DecodeString(msgHex)
	if err != nil || len(digestBytes) != 32 {
		return fmt.Errorf("--message must be a 32-byte hex digest")
	}
	var digest [32]byte
	copy(digest[:], digestBytes)

	signers := ks.Parties
	if partyList != "" {
		signers, err = parsePartyList(partyList)
		if err != nil {
			return err
		}
	}
	cfg := session.Config{
		SessionID: session.ID(sessionID),
		Self:      ks.Self,
		Parties:   signers,
		Threshold: ks.Threshold,
	}
	r := relay.NewHTTPRelay(relayURL, cfg.SessionID, cfg.Self)

	ctx, cancel := withTimeout()
	defer cancel()

	sig, err := dsg.Sign(ctx, cfg, r, ks, digest)
	if err != nil {
		return err
	}
	der := sig.ToDER()
	rBytes := sig.R.Bytes()
	sBytes := sig.S.Bytes()
	fmt.Printf("r:   %s\n", hex.EncodeToString(rBytes[:]))
	fmt.Printf("s:   %s\n", hex.EncodeToString(sBytes[:]))
	fmt.Printf("v:   %d\n", sig.RecoveryID)
	fmt.Printf("der: %s\n", hex.EncodeToString(der))
	if outFile == "" {
		return nil
	}
	return os.WriteFile(outFile, der, 0o644)
}

func runDerive(cmd *cobra.Command, args []string) error {
	ks, err := keyshare.Load(keyFile)
	if err != nil {
		return err
	}
	indices, err := derive.ParsePath(derivePath)
	if err != nil {
		return err
	}
	child, err := derive.Path(ks, indices)
	if err != nil {
		return err
	}
	return keyshare.Save(outFile, child)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ks, err := keyshare.Load(keyFile)
	if err != nil {
		return err
	}
	fmt.Printf("session:     %s\n", ks.SessionID)
	fmt.Printf("self:        %d\n", ks.Self)
	fmt.Printf("parties:     %v\n", ks.Parties)
	fmt.Printf("threshold:   %d\n", ks.Threshold)
	fmt.Printf("generation:  %d\n", ks.Generation)
	fmt.Printf("public_key:  %s\n", hex.EncodeToString(ks.PublicKey[:]))
	fmt.Printf("chain_code:  %s\n", hex.EncodeToString(ks.ChainCode[:]))
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrUint32(key string, def uint32) uint32 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return def
}
