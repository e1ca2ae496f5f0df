// Package treasury drives the daily Bitcoin-holdings snapshot: a fixed
// roster of spot Bitcoin ETFs, a 4-stage extraction pipeline per fund, and
// an orchestrator that runs every fund concurrently and always returns one
// record per fund.
package treasury

import (
	"slices"

	"github.com/use-agent/treasury/models"
)

// Fund is one roster entry. Everything fund-specific is configuration
// (URL, optional action script, optional prompt instructions), never code:
// all funds run the identical pipeline.
type Fund struct {
	// Symbol is the ETF ticker and the roster key.
	Symbol string

	// Name is the full fund name.
	Name string

	// URL is the public page disclosing the fund's holdings.
	URL string

	// SpecialInstructions is an optional natural-language suffix for the
	// extraction prompt, for pages with known quirks.
	SpecialInstructions string

	// InitialActions are replayed before the initial and focused renders,
	// for pages that hide holdings behind tabs, modals or document viewers.
	InitialActions []models.Action
}

// fidelityDailyHoldingsJS clicks through to the Daily Holdings PDF in
// Fidelity's document viewer. The click handler lives on the <td> wrapping
// the DALYTab link, not on the link itself.
const fidelityDailyHoldingsJS = `
function openDailyHoldings() {
  const dailyLink = document.getElementById('DALYTab');
  if (!dailyLink) return;
  const triggerCell = dailyLink.closest('td.tdborder');
  if (triggerCell) triggerCell.click();
}
openDailyHoldings();
`

// Roster returns the static fund roster in canonical output order, with any
// symbols in disabled removed. Membership is deployment configuration; the
// list itself never changes at runtime.
func Roster(disabled []string) []Fund {
	all := []Fund{
		{
			Symbol: "IBIT",
			Name:   "iShares Bitcoin Trust",
			URL:    "https://www.ishares.com/us/products/333011/ishares-bitcoin-trust",
		},
		{
			Symbol: "FBTC",
			Name:   "Fidelity Wise Origin Bitcoin Fund",
			URL:    "https://www.actionsxchangerepository.fidelity.com/ShowDocument/ComplianceEnvelope.htm?_fax=-18%2342%23-61%23-110%23114%2378%23117%2320%23-1%2396%2339%23-62%23-21%2386%23-100%2337%2316%2335%23-68%2391%23-66%2354%23103%23-16%2369%23-30%2358%23-20%2376%23-84%23-11%23-87%230%23-50%23-20%23-92%23-98%23-116%23-28%2358%23-38%23-43%23-39%23-42%23-96%23-88%2388%23-45%23105%23-76%2367%23125%23123%23-122%23-5%2319%23-74%235%23-89%23-105%23-67%23126%2377%23-126%23100%2345%23-44%23-73%23-15%238%23-21%23-37%23-17%23-14%23-98%23123%23-18%2345%23-59%23-82%2367%2383%23112%2317%2370%23-78%2378%23-50%2336%23-86%23-90%2381%23-21%23-119%23-30%23120%2349%2328%23-98%2333%2351%23-78%23-119%23-16%2350%23-58%2350%23102%2348%23-17%2352%23-99%23",
			SpecialInstructions: "The page is Fidelity's document viewer showing the Daily Holdings Report PDF for FBTC. " +
				"The holdings data is shown in a table inside the PDF.",
			InitialActions: []models.Action{
				{Type: models.ActionWait, Milliseconds: 5000},
				{Type: models.ActionExecuteJS, Code: fidelityDailyHoldingsJS},
				{Type: models.ActionWait, Milliseconds: 15000},
			},
		},
		{
			Symbol: "GBTC",
			Name:   "Grayscale Bitcoin Trust",
			URL:    "https://etfs.grayscale.com/gbtc",
		},
		{
			Symbol: "ARKB",
			Name:   "ARK 21Shares Bitcoin ETF",
			URL:    "https://data.chain.link/feeds/base/base/arkb-reserves",
		},
		{
			Symbol: "BTC",
			Name:   "Grayscale Bitcoin Mini Trust",
			URL:    "https://etfs.grayscale.com/btc",
		},
		{
			Symbol: "BITB",
			Name:   "Bitwise Bitcoin ETF",
			URL:    "https://bitbetf.com/",
		},
		{
			Symbol: "HODL",
			Name:   "VanEck Bitcoin Trust",
			URL:    "https://www.vaneck.com/us/en/investments/bitcoin-etf-hodl/overview/",
		},
		{
			Symbol: "BRRR",
			Name:   "Valkyrie Bitcoin Fund",
			URL:    "https://coinshares.com/us/etf/brrr/",
		},
		{
			Symbol:              "BTCO",
			Name:                "Invesco Galaxy Bitcoin ETF",
			URL:                 "https://www.invesco.com/us/financial-products/etfs/holdings?audienceType=Investor&ticker=BTCO",
			SpecialInstructions: "This page is supposed to show holdings but may not display them. Note if holdings are not visible.",
		},
		{
			Symbol: "EZBC",
			Name:   "Franklin Bitcoin ETF",
			URL:    "https://www.franklintempleton.com/investments/options/exchange-traded-funds/products/39639/SINGLCLASS/franklin-bitcoin-etf/EZBC",
		},
		{
			Symbol: "BTCW",
			Name:   "WisdomTree Bitcoin Fund",
			URL:    "https://www.wisdomtree.com/investments/etfs/crypto/btcw",
			InitialActions: []models.Action{
				{Type: models.ActionScroll, Direction: "down", Amount: 7},
				{Type: models.ActionWait, Milliseconds: 1200},
				{Type: models.ActionClick, Selector: `a.fund-modal-trigger[data-href*="all-current-day-holdings"]`},
				{Type: models.ActionWait, Milliseconds: 3500},
			},
		},
		{
			Symbol: "DEFI",
			Name:   "Hashdex Bitcoin ETF",
			URL:    "https://hashdex-etfs.com/defi",
		},
	}

	if len(disabled) == 0 {
		return all
	}
	kept := all[:0:0]
	for _, f := range all {
		if !slices.Contains(disabled, f.Symbol) {
			kept = append(kept, f)
		}
	}
	return kept
}
