package telegram

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// consoleCodeAuthenticator prompts for the verification code on stdin
type consoleCodeAuthenticator struct{}

// Code prompts the user for the authentication code with a timeout
func (consoleCodeAuthenticator) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Print("Enter authentication code: ")

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(os.Stdin)
		code, err := reader.ReadString('\n')
		if err != nil {
			errChan <- fmt.Errorf("failed to read code: %w", err)
			return
		}
		codeChan <- strings.TrimSpace(code)
	}()

	select {
	case code := <-codeChan:
		return code, nil
	case err := <-errChan:
		return "", err
	case <-ctx.Done():
		return "", fmt.Errorf("code input cancelled: %w", ctx.Err())
	case <-time.After(2 * time.Minute):
		return "", fmt.Errorf("code input timeout")
	}
}

// authenticate runs the code-only login flow for the configured phone number
func (c *Client) authenticate(ctx context.Context) error {
	if c.phone == "" {
		return fmt.Errorf("no stored session and TELEGRAM_PHONE is not set, cannot authenticate")
	}

	flow := auth.NewFlow(
		auth.CodeOnly(c.phone, consoleCodeAuthenticator{}),
		auth.SendCodeOptions{},
	)

	if err := flow.Run(ctx, c.client.Auth()); err != nil {
		return fmt.Errorf("authentication flow failed: %w", err)
	}

	c.logger.Info().Msg("authentication successful")
	return nil
}
