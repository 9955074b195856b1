// Command sling-vault encrypts custodial wallet keys with WALLET_SECRET and
// optionally provisions the wallet row.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/solana"
	"github.com/0xayot/davids-sling/internal/storage/postgres"
	"github.com/0xayot/davids-sling/internal/vault"
)

type output struct {
	Address string             `json:"address"`
	Key     domain.KeyMaterial `json:"key"`
	// WalletID is set when the wallet was provisioned.
	WalletID int64 `json:"wallet_id,omitempty"`
}

func main() {
	generate := flag.Bool("generate", false, "generate a fresh keypair instead of reading one from stdin")
	dsn := flag.String("dsn", "", "postgres DSN; when set with -user, the wallet row is inserted")
	userID := flag.Int64("user", 0, "owner user id for provisioning")
	flag.Parse()

	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
		Timestamp().
		Str("service", "sling-vault").
		Logger()

	v := vault.New(func() (string, error) {
		t, err := config.EnvTuning{}.Tuning()
		return t.WalletSecret, err
	})

	key, err := readKey(*generate)
	if err != nil {
		log.Fatal().Err(err).Msg("read key")
	}

	km, err := v.Encrypt(key)
	if err != nil {
		log.Fatal().Err(err).Msg("encrypt key")
	}
	wallet := domain.Wallet{Chain: domain.Chain, Key: km, UserID: *userID}

	// Round trip before anything is printed or stored.
	kp, err := v.Decrypt(wallet)
	if err != nil {
		log.Fatal().Err(err).Msg("verify encrypted key")
	}
	wallet.Address = string(kp.PublicKey())

	out := output{Address: wallet.Address, Key: km}
	if *dsn != "" {
		if *userID <= 0 {
			log.Fatal().Msg("-user is required with -dsn")
		}
		id, err := provision(*dsn, &wallet)
		if err != nil {
			log.Fatal().Err(err).Msg("provision wallet")
		}
		out.WalletID = id
		log.Info().Int64("wallet_id", id).Int64("user_id", *userID).Str("address", wallet.Address).Msg("wallet provisioned")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("write output")
	}
}

func readKey(generate bool) (string, error) {
	if generate {
		kp, err := solana.NewKeypair()
		if err != nil {
			return "", err
		}
		return kp.Base58(), nil
	}
	fmt.Fprintln(os.Stderr, "base58 private key:")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no key on stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func provision(dsn string, w *domain.Wallet) (int64, error) {
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return 0, err
	}
	defer pool.Close()
	if err := postgres.NewWalletStore(pool).Insert(ctx, w); err != nil {
		return 0, err
	}
	return w.ID, nil
}
