package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/reiness/edos-jls-chatbot/internal/assistant"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/history"
	"github.com/reiness/edos-jls-chatbot/internal/retriever"
)

var (
	askJSON        bool
	askInteractive bool
	askSave        bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and get an answer grounded in the SOPs",
	Long: `Retrieves the passages most relevant to the question and asks the
generation model to answer from them alone, listing the SOPs it used.
Use --top-k or --threshold to override the configured retrieval policy and
--interactive to keep asking in one session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !askInteractive {
			return errors.New("provide a question or use --interactive")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		policy, err := policyFromFlags(cmd, cfg)
		if err != nil {
			return err
		}
		a, err := assistant.FromConfig(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if _, err := a.BuildOrLoadIndex(ctx, false); err != nil {
			return err
		}

		var hist *history.Store
		if askSave {
			store, database, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer database.Close()
			hist = store
		}

		session := uuid.NewString()
		if len(args) > 0 {
			return askOnce(ctx, a, hist, session, strings.Join(args, " "), policy)
		}

		fmt.Printf("Asking with %s. Empty line or Ctrl-C to quit.\n", policy)
		for {
			prompt := promptui.Prompt{Label: "Question"}
			q, err := prompt.Run()
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if strings.TrimSpace(q) == "" {
				return nil
			}
			if err := askOnce(ctx, a, hist, session, q, policy); err != nil {
				if errors.Is(err, assistant.ErrEmptyQuestion) {
					continue
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			fmt.Println()
		}
	},
}

func askOnce(ctx context.Context, a *assistant.Assistant, hist *history.Store, session, question string, policy retriever.Policy) error {
	turn, err := a.AnswerQuery(ctx, question, policy)
	if err != nil {
		return err
	}
	turn.SessionID = session
	if hist != nil {
		saved, err := hist.Append(ctx, turn)
		if err != nil {
			warnf("could not save to history: %v", err)
		} else {
			turn = saved
		}
	}
	printTurn(turn)
	return nil
}

func printTurn(turn domain.ConversationTurn) {
	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(turn)
		return
	}
	fmt.Println(turn.Answer)
	printCitations(turn.Sources)
	debugf("policy=%s context_tokens=%d\n", turn.Policy, turn.ContextTokens)
}

func init() {
	addPolicyFlags(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
	askCmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "ask questions in a loop")
	askCmd.Flags().BoolVar(&askSave, "save", false, "record the conversation in the history database")
	rootCmd.AddCommand(askCmd)
}
