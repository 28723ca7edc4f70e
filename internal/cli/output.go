package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goliatone/go-donations/inbound"
)

// printer renders command results as text tables or the JSON shapes served
// over HTTP.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(opts *RootOptions, w io.Writer) printer {
	return printer{format: opts.Format, w: w}
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) donationPage(page inbound.DonationPageResponse) error {
	if p.format == "json" {
		return p.json(page)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSACTION\tORDER\tAMOUNT\tDONOR\tCREATED")
	for _, item := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\n",
			item.TransactionID,
			item.OrderID,
			item.Amount,
			item.Currency,
			item.DonorName,
			item.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.w, "page %d, %d per page, %d total\n", page.Page, page.PerPage, page.Total)
	return err
}

func (p printer) donation(donation inbound.DonationResponse) error {
	if p.format == "json" {
		return p.json(donation)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "transaction\t%s\n", donation.TransactionID)
	fmt.Fprintf(tw, "order\t%s\n", donation.OrderID)
	fmt.Fprintf(tw, "amount\t%s %s\n", donation.Amount, donation.Currency)
	fmt.Fprintf(tw, "donor\t%s\n", donation.DonorName)
	fmt.Fprintf(tw, "email\t%s\n", donation.DonorEmail)
	fmt.Fprintf(tw, "address\t%s\n", donation.DonorAddress)
	fmt.Fprintf(tw, "created\t%s\n", donation.CreatedAt.Format("2006-01-02 15:04:05"))
	return tw.Flush()
}

func (p printer) progress(progress inbound.ProgressResponse) error {
	if p.format == "json" {
		return p.json(progress)
	}
	_, err := fmt.Fprintf(p.w, "%s of %s %s raised (%s%%) from %d donations\n",
		progress.Total, progress.Goal, progress.Currency, progress.Percentage, progress.Count)
	return err
}

func (p printer) feeQuote(quote inbound.FeeQuoteResponse) error {
	if p.format == "json" {
		return p.json(quote)
	}
	_, err := fmt.Fprintf(p.w, "amount %s, fee %s, total %s %s\n", quote.Amount, quote.Fee, quote.Total, quote.Currency)
	return err
}

type reconcileOutput struct {
	Cutoff           string   `json:"cutoff"`
	Scanned          int      `json:"scanned"`
	Abandoned        []string `json:"abandoned"`
	OrphanedCaptures []string `json:"orphaned_captures"`
	Deleted          int      `json:"deleted"`
	DryRun           bool     `json:"dry_run"`
}

func (p printer) reconcile(report reconcileOutput) error {
	if p.format == "json" {
		return p.json(report)
	}
	mode := "deleted"
	if report.DryRun {
		mode = "would delete"
	}
	if _, err := fmt.Fprintf(p.w, "scanned %d pending orders older than %s; %s %d abandoned\n",
		report.Scanned, report.Cutoff, mode, len(report.Abandoned)); err != nil {
		return err
	}
	for _, orderID := range report.OrphanedCaptures {
		if _, err := fmt.Fprintf(p.w, "orphaned capture: order %s\n", orderID); err != nil {
			return err
		}
	}
	return nil
}
