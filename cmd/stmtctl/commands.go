package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"stmtguard/internal/anonymizer"
	"stmtguard/internal/anonymizer/pathspec"
	"stmtguard/internal/dedupe/app"
	"stmtguard/internal/dedupe/handler"
	"stmtguard/internal/dedupe/models"
	"stmtguard/internal/dedupe/service"
	jwttoken "stmtguard/internal/jwt_token"
	"stmtguard/internal/platform/config"
	"stmtguard/internal/provider"
	id "stmtguard/pkg/domain"
)

func specsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "specs",
		Short: "List the path specs in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := appCatalog(g)
			if err != nil {
				return err
			}
			for _, name := range catalog.Names() {
				spec, _ := catalog.Lookup(name)
				kind := "fixed"
				if spec.IsTemplate() {
					kind = "template"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-45s %3d paths  %s\n", name, spec.Len(), kind)
			}
			return nil
		},
	}
}

// appCatalog loads the catalog without opening the index.
func appCatalog(g *globalFlags) (*pathspec.Catalog, error) {
	return app.LoadCatalog(g.pathSpecs)
}

func flattenCmd(g *globalFlags) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "flatten [spec] [file]",
		Short: "Print the flattened records of a JSON document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.offline()
			if err != nil {
				return err
			}
			spec, ok := c.Catalog.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown path spec %q", args[0])
			}
			if spec.IsTemplate() {
				if spec, err = spec.Bind(index); err != nil {
					return err
				}
			}
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			lines, err := c.Flattener.FlattenLines(raw, spec)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "entry", 0, "Entry index for template specs")
	return cmd
}

type tokenOutput struct {
	AccountNumber string   `json:"accountNumber"`
	HashType      string   `json:"hashType"`
	Transactions  []string `json:"transactions"`
	Statement     string   `json:"statement,omitempty"`
}

func tokenizeCmd(g *globalFlags) *cobra.Command {
	var hashType string
	cmd := &cobra.Command{
		Use:   "tokenize [file]",
		Short: "Tokenize a statement without touching the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			c, err := g.offline()
			if err != nil {
				return err
			}

			format, err := provider.Detect(filepath.Base(args[0]), "", raw)
			if err != nil {
				return err
			}
			stmt, err := c.Extractor.Extract(format, raw)
			if err != nil {
				return err
			}

			var tokens []models.AccountTokens
			if hashType == "" {
				tokens, err = c.Anonymizer.TokenizeAll(anonymizer.Owner{}, stmt)
			} else {
				var h models.HashType
				if h, err = models.ParseHashType(hashType); err != nil {
					return err
				}
				tokens, err = c.Anonymizer.Tokenize(anonymizer.Owner{}, stmt, h)
			}
			if err != nil {
				return err
			}

			out := make([]tokenOutput, 0, len(tokens))
			for _, t := range tokens {
				o := tokenOutput{
					AccountNumber: t.AccountNumber.Masked(),
					HashType:      t.HashType.String(),
					Transactions:  t.TokenValues(),
				}
				if t.Statement != nil {
					o.Statement = t.Statement.Token
				}
				out = append(out, o)
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&hashType, "hash-type", "", "Only this section (BANK_TRANSACTION, ACCOUNT_XNS, EOD_BALANCE)")
	return cmd
}

type ownerFlags struct {
	user  string
	realm string
}

func (o *ownerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.user, "user", "", "Owner user id")
	cmd.Flags().StringVar(&o.realm, "realm", "", "Owner realm id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("realm")
}

func (o *ownerFlags) parse() (id.UserID, id.RealmID, error) {
	userID, err := id.ParseUserID(o.user)
	if err != nil {
		return 0, "", err
	}
	realmID, err := id.ParseRealmID(o.realm)
	if err != nil {
		return 0, "", err
	}
	return userID, realmID, nil
}

func readUpload(path string) (service.Upload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return service.Upload{}, err
	}
	return service.Upload{Filename: filepath.Base(path), Body: raw}, nil
}

func ingestCmd(g *globalFlags) *cobra.Command {
	var owner ownerFlags
	var mediaLink string
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Tokenize a statement and store its tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, realmID, err := owner.parse()
			if err != nil {
				return err
			}
			up, err := readUpload(args[0])
			if err != nil {
				return err
			}
			if mediaLink == "" {
				mediaLink = args[0]
			}
			c, closeFn, err := g.pipeline()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := c.Service.Ingest(cmd.Context(), service.IngestRequest{
				UserID:     userID,
				RealmID:    realmID,
				SourceType: models.SourceBatch,
				MediaLink:  mediaLink,
				Upload:     up,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, handler.NewIngestResponse(userID, realmID, res))
		},
	}
	owner.register(cmd)
	cmd.Flags().StringVar(&mediaLink, "media-link", "", "Where the original statement is kept")
	return cmd
}

func dedupeCmd(g *globalFlags) *cobra.Command {
	var owner ownerFlags
	var account, hashType string
	cmd := &cobra.Command{
		Use:   "dedupe [file]",
		Short: "Correlate a statement against the stored tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, realmID, err := owner.parse()
			if err != nil {
				return err
			}
			req := service.DedupeRequest{UserID: userID, RealmID: realmID}
			if account != "" {
				if req.AccountNumber, err = id.ParseAccountNumber(account); err != nil {
					return err
				}
			}
			if hashType != "" {
				if req.HashType, err = models.ParseHashType(hashType); err != nil {
					return err
				}
			}
			if req.Upload, err = readUpload(args[0]); err != nil {
				return err
			}
			c, closeFn, err := g.pipeline()
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := c.Service.Dedupe(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, handler.NewDedupeResponse(report))
		},
	}
	owner.register(cmd)
	cmd.Flags().StringVar(&account, "account", "", "Account number to check (default: first account)")
	cmd.Flags().StringVar(&hashType, "hash-type", "", "Section to correlate (default: BANK_TRANSACTION)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject, realm string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for the API using JWT_SIGNING_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			svc := jwttoken.NewJWTService(cfg.JWTSigningKey, jwttoken.DefaultIssuer, jwttoken.DefaultAudience)
			token, err := svc.GenerateAccessToken(subject, realm, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	cmd.Flags().StringVar(&realm, "realm", "", "Realm the token is scoped to")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("realm")
	return cmd
}
