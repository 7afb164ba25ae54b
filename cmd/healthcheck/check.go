package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/iptu-bfa-go/internal/infra/resilience"
)

// dummySimulation is valid in shape but refers to no real property.
const dummySimulation = `{
	"identificacao": {"inscricaoImobiliaria": "000000000000"},
	"itensSelecionados": [{"id": "healthcheck"}],
	"opcoes": {"parcelas": 1, "vencimento": "1900-01-01"}
}`

type checker struct {
	baseURL string
	client  *http.Client
	retry   resilience.Config
	out     io.Writer
}

type result struct {
	status  int
	payload map[string]any
}

// run checks the simulation (fatal on 5xx or transport failure) and the
// debts route (informational only).
func (c *checker) run(ctx context.Context) error {
	fmt.Fprintf(c.out, "[healthcheck] base URL: %s\n", c.baseURL)

	sim, err := c.call(ctx, http.MethodPost, "/v1/simulacao", dummySimulation)
	switch {
	case err != nil:
		return fmt.Errorf("simulacao inacessivel: %w", err)
	case sim.status >= 500:
		return fmt.Errorf("simulacao falhou com status %d: %v", sim.status, sim.payload["message"])
	case sim.status == http.StatusOK && sim.payload["modo"] == "mock":
		fmt.Fprintln(c.out, "[healthcheck] simulacao em modo mock (credenciais Prodata ausentes)")
	case sim.status == http.StatusOK:
		fmt.Fprintln(c.out, "[healthcheck] simulacao OK")
	default:
		fmt.Fprintf(c.out, "[healthcheck] simulacao respondeu %d, revise credenciais/dados: %v\n", sim.status, sim.payload["message"])
	}

	deb, err := c.call(ctx, http.MethodGet, "/v1/debitos?inscricao=000000000000", "")
	switch {
	case err != nil:
		fmt.Fprintf(c.out, "[healthcheck] debitos indisponiveis: %v\n", err)
	case deb.status == http.StatusServiceUnavailable:
		fmt.Fprintln(c.out, "[healthcheck] debitos aguardando credenciais Prodata")
	case deb.status == http.StatusOK:
		fmt.Fprintln(c.out, "[healthcheck] debitos habilitados")
	case deb.status == http.StatusBadRequest, deb.status == http.StatusUnprocessableEntity, deb.status == http.StatusNotFound:
		fmt.Fprintln(c.out, "[healthcheck] debitos responderam com validacao (esperado sem dados reais)")
	default:
		fmt.Fprintf(c.out, "[healthcheck] debitos retornaram status %d\n", deb.status)
	}
	return nil
}

// call performs one request, retrying transport failures only.
func (c *checker) call(ctx context.Context, method, path, body string) (result, error) {
	var res result
	target := strings.TrimRight(c.baseURL, "/") + path

	err := resilience.RetryWithBackoff(ctx, c.retry, func() error {
		var reader io.Reader
		if body != "" {
			reader = bytes.NewBufferString(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return resilience.Permanent(err)
		}
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Correlation-Id", "healthcheck")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		res = result{status: resp.StatusCode, payload: map[string]any{}}
		if err := json.NewDecoder(resp.Body).Decode(&res.payload); err != nil && !errors.Is(err, io.EOF) {
			res.payload = map[string]any{}
		}
		return nil
	})
	return res, err
}
