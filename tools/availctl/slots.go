package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/md-rashed-zaman/meetbook/libs/config"
	"github.com/md-rashed-zaman/meetbook/libs/httpx"
	"github.com/spf13/cobra"
)

type slot struct {
	DisplayTime string `json:"display_time"`
	Available   bool   `json:"available"`
	UTCInstant  string `json:"utc_instant"`
}

type slotsResponse struct {
	HostID        string `json:"host_id"`
	MeetingTypeID string `json:"meeting_type_id"`
	Date          string `json:"date"`
	Timezone      string `json:"timezone"`
	Slots         []slot `json:"slots"`
}

type slotsOptions struct {
	baseURL       string
	hostID        string
	meetingTypeID string
	date          string
	timezone      string
	onlyOpen      bool
	asJSON        bool
	timeout       time.Duration
}

func newSlotsCmd() *cobra.Command {
	opts := slotsOptions{}
	c := &cobra.Command{
		Use:   "slots",
		Short: "List the slots a guest would see for a host, meeting type and date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.date == "" {
				opts.date = time.Now().Format(time.DateOnly)
			}
			if _, err := time.Parse(time.DateOnly, opts.date); err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}
			if strings.TrimSpace(opts.hostID) == "" || strings.TrimSpace(opts.meetingTypeID) == "" {
				return fmt.Errorf("--host-id and --meeting-type-id are required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			resp, err := fetchSlots(ctx, http.DefaultClient, opts)
			if err != nil {
				return err
			}
			return printSlots(cmd.OutOrStdout(), resp, opts)
		},
	}
	f := c.Flags()
	f.StringVar(&opts.baseURL, "base-url", config.String("AVAILABILITY_URL", "http://localhost:8084"), "availability service base url")
	f.StringVar(&opts.hostID, "host-id", config.String("HOST_ID", ""), "host uuid")
	f.StringVar(&opts.meetingTypeID, "meeting-type-id", config.String("MEETING_TYPE_ID", ""), "meeting type uuid")
	f.StringVar(&opts.date, "date", "", "calendar date YYYY-MM-DD (default today)")
	f.StringVar(&opts.timezone, "timezone", "", "viewer IANA timezone for display labels")
	f.BoolVar(&opts.onlyOpen, "open", false, "hide slots that are already taken")
	f.BoolVar(&opts.asJSON, "json", false, "print the raw response")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	return c
}

func fetchSlots(ctx context.Context, client *http.Client, opts slotsOptions) (slotsResponse, error) {
	q := url.Values{}
	q.Set("host_id", opts.hostID)
	q.Set("meeting_type_id", opts.meetingTypeID)
	q.Set("date", opts.date)
	if opts.timezone != "" {
		q.Set("timezone", opts.timezone)
	}
	endpoint := strings.TrimRight(opts.baseURL, "/") + "/api/v1/public/availability?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return slotsResponse{}, err
	}
	req.Header.Set(httpx.RequestIDHeader, httpx.NewRequestID())

	resp, err := client.Do(req)
	if err != nil {
		return slotsResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return slotsResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return slotsResponse{}, fmt.Errorf("availability service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out slotsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return slotsResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func printSlots(w io.Writer, resp slotsResponse, opts slotsOptions) error {
	if opts.onlyOpen {
		open := resp.Slots[:0]
		for _, s := range resp.Slots {
			if s.Available {
				open = append(open, s)
			}
		}
		resp.Slots = open
	}
	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	if len(resp.Slots) == 0 {
		_, err := fmt.Fprintf(w, "no slots on %s\n", resp.Date)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tUTC\tSTATUS")
	for _, s := range resp.Slots {
		status := "open"
		if !s.Available {
			status = "taken"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.DisplayTime, s.UTCInstant, status)
	}
	return tw.Flush()
}
