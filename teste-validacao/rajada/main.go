// rajada dispara N requisições concorrentes com o mesmo token contra um
// vault rodando e conta quantas passaram e quantas levaram 429.
//
//	go run ./teste-validacao/rajada --url http://localhost:8080 --token abc -n 20
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

type report struct {
	mu       sync.Mutex
	byStatus map[int]int
	errors   int
	took     time.Duration
}

func (r *report) add(status int) {
	r.mu.Lock()
	r.byStatus[status]++
	r.mu.Unlock()
}

func (r *report) fail() {
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
}

func (r *report) String() string {
	codes := make([]int, 0, len(r.byStatus))
	for c := range r.byStatus {
		codes = append(codes, c)
	}
	sort.Ints(codes)

	var b strings.Builder
	for _, c := range codes {
		fmt.Fprintf(&b, "%d %s: %d\n", c, http.StatusText(c), r.byStatus[c])
	}
	if r.errors > 0 {
		fmt.Fprintf(&b, "erros de rede: %d\n", r.errors)
	}
	fmt.Fprintf(&b, "tempo: %s\n", r.took)
	return b.String()
}

type burst struct {
	client *http.Client
	base   string
	token  string
	method string
	n      int
}

// fire manda as n requisições de uma vez; erro de rede conta mas não aborta.
func (b burst) fire(ctx context.Context) *report {
	rep := &report{byStatus: make(map[int]int)}
	body, _ := json.Marshal(map[string]string{
		"payload": base64.StdEncoding.EncodeToString([]byte("rajada")),
	})

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	ready := make(chan struct{})
	for i := 0; i < b.n; i++ {
		g.Go(func() error {
			<-ready
			req, err := b.request(gctx, body)
			if err != nil {
				return err
			}
			resp, err := b.client.Do(req)
			if err != nil {
				rep.fail()
				return nil
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			rep.add(resp.StatusCode)
			return nil
		})
	}
	close(ready)
	_ = g.Wait()
	rep.took = time.Since(start)
	return rep
}

func (b burst) request(ctx context.Context, body []byte) (*http.Request, error) {
	base := strings.TrimRight(b.base, "/")
	var req *http.Request
	var err error
	if b.method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, base+"/vault/items", nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, base+"/vault", bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	return req, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "rajada",
		Usage: "dispara requisições concorrentes contra o vault",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "endereço do vault"},
			&cli.StringFlag{Name: "token", Value: "rajada", Usage: "token do chamador"},
			&cli.IntFlag{Name: "n", Value: 20, Usage: "quantidade de requisições"},
			&cli.StringFlag{Name: "method", Value: http.MethodPost, Usage: "POST (cria item) ou GET (lista)"},
			&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "timeout por requisição"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			method := strings.ToUpper(cmd.String("method"))
			if method != http.MethodPost && method != http.MethodGet {
				return fmt.Errorf("method must be POST or GET, got %q", method)
			}
			if cmd.Int("n") <= 0 {
				return fmt.Errorf("n must be > 0")
			}
			b := burst{
				client: &http.Client{Timeout: cmd.Duration("timeout")},
				base:   cmd.String("url"),
				token:  cmd.String("token"),
				method: method,
				n:      int(cmd.Int("n")),
			}
			fmt.Print(b.fire(ctx))
			return nil
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
