package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// holdingsRecord mirrors the Treasury API record model.
type holdingsRecord struct {
	Symbol          string   `json:"etf_symbol"`
	Name            string   `json:"etf_name"`
	SourceURL       string   `json:"website_url"`
	BitcoinQuantity *float64 `json:"bitcoin_quantity"`
	Unit            string   `json:"bitcoin_quantity_unit"`
	TotalNetAssets  string   `json:"total_net_assets"`
	AsOfDate        string   `json:"as_of_date"`
	DataFound       bool     `json:"data_found"`
	Notes           string   `json:"notes"`
}

// holdingsResponse mirrors the Treasury API response model.
type holdingsResponse struct {
	Success  bool             `json:"success"`
	Holdings []holdingsRecord `json:"holdings"`
	Found    int              `json:"found"`
	Total    int              `json:"total"`
	Cached   bool             `json:"cached"`
	Error    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("TREASURY_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("TREASURY_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "TREASURY_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"treasury",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	dailyHoldingsTool := mcp.NewTool("get_daily_holdings",
		mcp.WithDescription("Get today's Bitcoin holdings snapshot for all tracked spot Bitcoin ETFs. Each fund reports its Bitcoin quantity, total net assets and as-of date; funds whose disclosure page could not be read appear with data_found=false."),
		mcp.WithString("max_age",
			mcp.Description("Maximum acceptable snapshot age as a Go duration (e.g. '30m'). '0' forces a fresh extraction run, which can take several minutes."),
		),
	)
	s.AddTool(dailyHoldingsTool, handleDailyHoldings(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleDailyHoldings(apiURL, apiKey string) server.ToolHandlerFunc {
	// A cold run renders and extracts a dozen sites; give it room.
	client := &http.Client{Timeout: 900 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		endpoint := apiURL + "/api/v1/holdings/daily"
		if maxAge := request.GetString("max_age", ""); maxAge != "" {
			endpoint += "?max_age=" + maxAge
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("X-API-Key", apiKey)

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var hr holdingsResponse
		if err := json.Unmarshal(respBody, &hr); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !hr.Success {
			errMsg := "holdings request failed"
			if hr.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", hr.Error.Code, hr.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		source := "live run"
		if hr.Cached {
			source = "cached snapshot"
		}
		sb.WriteString(fmt.Sprintf("Bitcoin ETF daily holdings (%s): %d/%d funds reported data\n\n",
			source, hr.Found, hr.Total))

		for _, rec := range hr.Holdings {
			if !rec.DataFound || rec.BitcoinQuantity == nil {
				sb.WriteString(fmt.Sprintf("%s: no data", rec.Symbol))
				if rec.Notes != "" {
					sb.WriteString(" (" + rec.Notes + ")")
				}
				sb.WriteString("\n")
				continue
			}
			sb.WriteString(fmt.Sprintf("%s (%s): %.2f %s", rec.Symbol, rec.Name, *rec.BitcoinQuantity, rec.Unit))
			if rec.TotalNetAssets != "" {
				sb.WriteString(", net assets " + rec.TotalNetAssets)
			}
			if rec.AsOfDate != "" {
				sb.WriteString(", as of " + rec.AsOfDate)
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}
