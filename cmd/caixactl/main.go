package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/caixa/internal/config"
	"github.com/dropDatabas3/caixa/internal/domain/repository"
	jwtx "github.com/dropDatabas3/caixa/internal/jwt"
	"github.com/dropDatabas3/caixa/internal/observability/logger"
	"github.com/dropDatabas3/caixa/internal/store"
)

// skipSetup marca comandos que no necesitan config ni store.
const skipSetup = "caixactl/skip-setup"

// env agrupa lo que abren los subcomandos. Se arma perezosamente en PersistentPreRunE.
type env struct {
	cfg    *config.Config
	store  repository.Store
	issuer *jwtx.Issuer
	out    string
}

func (e *env) print(v any, text func(w *tabwriter.Writer)) {
	if e.out == "json" {
		b, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(b))
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	text(tw)
	_ = tw.Flush()
}

func main() {
	_ = godotenv.Load()

	e := &env{}
	var configPath string

	root := &cobra.Command{
		Use:           "caixactl",
		Short:         "Administración de caixa: migraciones, tokens API y caixa de entrada",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}
			var err error
			if configPath != "" {
				e.cfg, err = config.Load(configPath)
			} else {
				e.cfg, err = config.LoadFromEnv()
			}
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger.Init(logger.Config{Env: e.cfg.App.Env, Level: e.cfg.Log.Level, ServiceName: "caixactl"})

			// migrate aplica las migraciones a mano; el resto respeta storage.migrate
			if cmd.Name() == "migrate" {
				e.cfg.Storage.Migrate = false
			}
			e.store, err = store.Open(cmd.Context(), e.cfg)
			if err != nil {
				return err
			}
			ks, err := jwtx.DeriveEd25519([]byte(e.cfg.Signing.MasterKey))
			if err != nil {
				return fmt.Errorf("signing keys: %w", err)
			}
			e.issuer = jwtx.NewIssuer(e.cfg.Signing.Issuer, ks)
			e.issuer.DefaultTTL = e.cfg.Signing.DefaultTTL
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = logger.Sync()
			if e.store != nil {
				return e.store.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path al config YAML (env CONFIG_PATH); vacío = solo variables de entorno")
	root.PersistentFlags().StringVar(&e.out, "out", "text", "Formato de salida: json|text")

	root.AddCommand(migrateCmd(e), tokenCmd(e), inboxCmd(e), keysCmd(e))

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes del storage configurado",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := store.Migrate(e.store, e.cfg.Storage.DSN)
			if err != nil {
				return err
			}
			fmt.Printf("schema en versión %d (%s)\n", v, e.cfg.Storage.Driver)
			return nil
		},
	}
}

type issuedToken struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principalId"`
	DeviceID    string     `json:"deviceId,omitempty"`
	Prefix      string     `json:"prefix"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	Token       string     `json:"token"`
}

func tokenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Tokens API del companion app"}

	var principal, device, name string
	var ttl time.Duration
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Emite un token y guarda su credencial (el token se muestra una sola vez)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if principal == "" {
				return fmt.Errorf("--principal es obligatorio")
			}
			id := uuid.NewString()
			tok, exp, err := e.issuer.IssueAPIToken(principal, id, device, ttl)
			if err != nil {
				return err
			}
			cred := &repository.Credential{
				ID:          id,
				PrincipalID: principal,
				Name:        name,
				Prefix:      tok[:8],
				DeviceID:    device,
				CreatedAt:   time.Now().UTC(),
				ExpiresAt:   exp,
			}
			if err := e.store.Credentials().Create(cmd.Context(), cred); err != nil {
				return fmt.Errorf("guardar credencial: %w", err)
			}
			logger.S().Infow("api token issued", "token_id", id, "principal_id", principal, "device_id", device)

			out := issuedToken{ID: id, PrincipalID: principal, DeviceID: device, Prefix: cred.Prefix, ExpiresAt: exp, Token: tok}
			e.print(out, func(w *tabwriter.Writer) {
				fmt.Fprintf(w, "id\t%s\n", out.ID)
				fmt.Fprintf(w, "principal\t%s\n", out.PrincipalID)
				if out.ExpiresAt != nil {
					fmt.Fprintf(w, "expires\t%s\n", out.ExpiresAt.Format(time.RFC3339))
				}
				fmt.Fprintf(w, "token\t%s\n", out.Token)
			})
			return nil
		},
	}
	issue.Flags().StringVar(&principal, "principal", "", "ID del usuario dueño del token")
	issue.Flags().StringVar(&device, "device", "", "ID del dispositivo (opcional)")
	issue.Flags().StringVar(&name, "name", "companion", "Nombre para mostrar")
	issue.Flags().DurationVar(&ttl, "ttl", -1, "Vigencia (negativo = signing.default_ttl, 0 = sin vencimiento)")

	var revokeID string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoca un token; deja de autenticar de inmediato",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revokeID == "" {
				return fmt.Errorf("--id es obligatorio")
			}
			if err := e.store.Credentials().Revoke(cmd.Context(), revokeID, time.Now().UTC()); err != nil {
				return err
			}
			logger.S().Infow("api token revoked", "token_id", revokeID)
			fmt.Println("revocado:", revokeID)
			return nil
		},
	}
	revoke.Flags().StringVar(&revokeID, "id", "", "ID del token")

	var listPrincipal string
	list := &cobra.Command{
		Use:   "list",
		Short: "Lista las credenciales de un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listPrincipal == "" {
				return fmt.Errorf("--principal es obligatorio")
			}
			creds, err := e.store.Credentials().ListByPrincipal(cmd.Context(), listPrincipal)
			if err != nil {
				return err
			}
			e.print(creds, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tNAME\tPREFIX\tDEVICE\tLAST USED\tSTATUS")
				for _, c := range creds {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						c.ID, c.Name, c.Prefix, c.DeviceID, fmtTime(c.LastUsedAt), credStatus(&c))
				}
			})
			return nil
		},
	}
	list.Flags().StringVar(&listPrincipal, "principal", "", "ID del usuario")

	cmd.AddCommand(issue, revoke, list)
	return cmd
}

func inboxCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "inbox", Short: "Caixa de entrada"}

	var principal string
	var limit int
	pending := &cobra.Command{
		Use:   "pending",
		Short: "Lista los items pendientes de conciliar, más antiguos primero",
		RunE: func(cmd *cobra.Command, args []string) error {
			if principal == "" {
				return fmt.Errorf("--principal es obligatorio")
			}
			items, err := e.store.Inbox().ListPending(cmd.Context(), principal, limit)
			if err != nil {
				return err
			}
			e.print(items, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "ID\tSOURCE\tWHEN\tAMOUNT\tTEXT")
				for _, it := range items {
					amount := "-"
					if it.ParsedAmount != nil {
						amount = it.ParsedAmount.String()
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.SourceApp,
						it.NotificationTimestamp.Format(time.RFC3339), amount, it.OriginalText)
				}
			})
			return nil
		},
	}
	pending.Flags().StringVar(&principal, "principal", "", "ID del usuario")
	pending.Flags().IntVar(&limit, "limit", 50, "Máximo de items (0 = todos)")

	var discardID, reason string
	discard := &cobra.Command{
		Use:   "discard",
		Short: "Descarta un item pendiente",
		RunE: func(cmd *cobra.Command, args []string) error {
			if discardID == "" {
				return fmt.Errorf("--id es obligatorio")
			}
			if err := e.store.Inbox().MarkDiscarded(cmd.Context(), discardID, reason, time.Now().UTC()); err != nil {
				return err
			}
			fmt.Println("descartado:", discardID)
			return nil
		},
	}
	discard.Flags().StringVar(&discardID, "id", "", "ID del item")
	discard.Flags().StringVar(&reason, "reason", "", "Motivo (opcional)")

	var processID, lancamento string
	process := &cobra.Command{
		Use:   "process",
		Short: "Marca un item como conciliado con un lançamento",
		RunE: func(cmd *cobra.Command, args []string) error {
			if processID == "" || lancamento == "" {
				return fmt.Errorf("--id y --lancamento son obligatorios")
			}
			if err := e.store.Inbox().MarkProcessed(cmd.Context(), processID, lancamento, time.Now().UTC()); err != nil {
				return err
			}
			fmt.Println("procesado:", processID)
			return nil
		},
	}
	process.Flags().StringVar(&processID, "id", "", "ID del item")
	process.Flags().StringVar(&lancamento, "lancamento", "", "ID del lançamento vinculado")

	cmd.AddCommand(pending, discard, process)
	return cmd
}

func keysCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "keys", Short: "Clave de firma de los tokens API"}

	show := &cobra.Command{
		Use:   "show",
		Short: "Muestra kid y pública derivadas de signing.master_key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ks := e.issuer.Keys
			out := map[string]string{
				"kid": ks.KID,
				"alg": ks.Alg,
				"iss": e.issuer.Iss,
				"pub": base64.RawURLEncoding.EncodeToString(ks.Pub),
			}
			e.print(out, func(w *tabwriter.Writer) {
				for _, k := range []string{"kid", "alg", "iss", "pub"} {
					fmt.Fprintf(w, "%s\t%s\n", k, out[k])
				}
			})
			return nil
		},
	}

	genMaster := &cobra.Command{
		Use:         "gen-master",
		Short:       "Genera una master key aleatoria para SIGNING_MASTER_KEY",
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				return err
			}
			fmt.Println(base64.RawStdEncoding.EncodeToString(b))
			return nil
		},
	}

	cmd.AddCommand(show, genMaster)
	return cmd
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func credStatus(c *repository.Credential) string {
	switch {
	case c.Revoked():
		return "revoked"
	case c.Expired(time.Now()):
		return "expired"
	}
	return "active"
}
