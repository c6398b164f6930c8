// Package collector gathers AWS Support cases across the accounts of an
// organization and writes them to the case bucket, one object per case.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	"github.com/aws/aws-sdk-go-v2/service/support"
	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	"github.com/kylejryan/support-case-insights/internal/awsutil"
	"github.com/kylejryan/support-case-insights/internal/models"
)

// ErrCaseNotFound is returned by CollectCase when the display id matches nothing.
var ErrCaseNotFound = errors.New("case not found")

// DefaultRoleName is the role assumed in member accounts.
const DefaultRoleName = "OrganizationAccountAccessRole"

// SupportClientFunc builds a Support API client signed with cfg.
type SupportClientFunc func(cfg aws.Config) support.DescribeCasesAPIClient

// Collector lists support cases for the home account directly and for every
// other active member account through an assumed role. Accounts are visited
// one at a time.
type Collector struct {
	Base       aws.Config
	Orgs       organizations.ListAccountsAPIClient
	STS        awsutil.STSAPI
	Support    support.DescribeCasesAPIClient // home account
	NewSupport SupportClientFunc              // member accounts
	RoleName   string
	Limiter    *rate.Limiter
	Logger     *slog.Logger
	Now        func() time.Time
}

// CasesByAccount maps account id to enriched cases, keeping the order in
// which accounts were first seen.
type CasesByAccount struct {
	Accounts []string
	Cases    map[string][]models.CaseEnvelope
}

func newCasesByAccount() *CasesByAccount {
	return &CasesByAccount{Cases: map[string][]models.CaseEnvelope{}}
}

func (c *CasesByAccount) add(accountID string, cases []models.CaseDetails) {
	if _, seen := c.Cases[accountID]; !seen {
		c.Accounts = append(c.Accounts, accountID)
		c.Cases[accountID] = nil
	}
	for _, cs := range cases {
		c.Cases[accountID] = append(c.Cases[accountID], Enrich(accountID, cs))
	}
}

// Len returns the total number of cases across accounts.
func (c *CasesByAccount) Len() int {
	n := 0
	for _, cs := range c.Cases {
		n += len(cs)
	}
	return n
}

// Collect gathers cases from every active account in the organization. If the
// organization cannot be enumerated it falls back to the home account only.
// A failure in one member account is logged and that account is skipped.
func (c *Collector) Collect(ctx context.Context, lookbackDays int, homeAccountID string) (*CasesByAccount, error) {
	log := c.logger()
	if homeAccountID == "" {
		id, err := awsutil.CallerAccountID(ctx, c.STS)
		if err != nil {
			return nil, err
		}
		homeAccountID = id
	}

	out := newCasesByAccount()
	accounts, err := c.activeAccounts(ctx)
	if err != nil {
		log.Warn("list organization accounts failed, falling back to home account",
			"account_id", homeAccountID, "error", err)
		cases, err := c.listHome(ctx, lookbackDays)
		if err != nil {
			return nil, err
		}
		out.add(homeAccountID, cases)
		return out, nil
	}
	log.Info("found organization accounts", "count", len(accounts))

	for _, acct := range accounts {
		var cases []models.CaseDetails
		var err error
		if acct == homeAccountID {
			cases, err = c.listHome(ctx, lookbackDays)
		} else {
			cases, err = c.listMember(ctx, acct)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("skipping account", "account_id", acct, "error", err)
			continue
		}
		out.add(acct, cases)
	}
	return out, nil
}

// CollectCase fetches a single case by display id. Cases of accountID are
// read through the assumed role unless it is the home account; an empty
// accountID means the home account.
func (c *Collector) CollectCase(ctx context.Context, homeAccountID, accountID, displayID string) (*CasesByAccount, error) {
	if homeAccountID == "" {
		id, err := awsutil.CallerAccountID(ctx, c.STS)
		if err != nil {
			return nil, err
		}
		homeAccountID = id
	}
	if accountID == "" {
		accountID = homeAccountID
	}

	client := c.Support
	in := &support.DescribeCasesInput{
		DisplayId:             aws.String(displayID),
		IncludeCommunications: aws.Bool(true),
		IncludeResolvedCases:  true,
		Language:              aws.String("en"),
	}
	if accountID != homeAccountID {
		cfg, err := awsutil.AssumeAccount(ctx, c.Base, c.STS, accountID, c.roleName())
		if err != nil {
			return nil, err
		}
		client = c.NewSupport(cfg)
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := client.DescribeCases(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("describe case %s in %s: %w", displayID, accountID, err)
	}
	if len(resp.Cases) == 0 {
		return nil, fmt.Errorf("display id %s in %s: %w", displayID, accountID, ErrCaseNotFound)
	}
	out := newCasesByAccount()
	out.add(accountID, []models.CaseDetails{fromAPI(resp.Cases[0])})
	return out, nil
}

func (c *Collector) activeAccounts(ctx context.Context) ([]string, error) {
	if c.Orgs == nil {
		return nil, errors.New("organizations client not configured")
	}
	var ids []string
	p := organizations.NewListAccountsPaginator(c.Orgs, &organizations.ListAccountsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range page.Accounts {
			if a.Status == orgtypes.AccountStatusActive {
				ids = append(ids, aws.ToString(a.Id))
			}
		}
	}
	return ids, nil
}

// listHome lists cases created in the last lookbackDays, with communications.
// Accounts without a Business or Enterprise support plan yield no cases.
func (c *Collector) listHome(ctx context.Context, lookbackDays int) ([]models.CaseDetails, error) {
	after := c.now().UTC().AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	cases, err := c.describe(ctx, c.Support, &support.DescribeCasesInput{
		AfterTime:             aws.String(after),
		IncludeResolvedCases:  true,
		IncludeCommunications: aws.Bool(true),
		Language:              aws.String("en"),
	})
	var ae smithy.APIError
	if errors.As(err, &ae) && ae.ErrorCode() == "SubscriptionRequiredException" {
		c.logger().Info("a Business, Enterprise On-Ramp, or Enterprise Support plan is required to use the AWS Support API")
		return nil, nil
	}
	return cases, err
}

// listMember assumes the collection role in accountID and lists every case,
// resolved ones included. The credentials die with this call.
func (c *Collector) listMember(ctx context.Context, accountID string) ([]models.CaseDetails, error) {
	cfg, err := awsutil.AssumeAccount(ctx, c.Base, c.STS, accountID, c.roleName())
	if err != nil {
		return nil, err
	}
	return c.describe(ctx, c.NewSupport(cfg), &support.DescribeCasesInput{
		IncludeResolvedCases: true,
	})
}

func (c *Collector) describe(ctx context.Context, client support.DescribeCasesAPIClient, in *support.DescribeCasesInput) ([]models.CaseDetails, error) {
	var cases []models.CaseDetails
	p := support.NewDescribeCasesPaginator(client, in)
	for p.HasMorePages() {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe cases: %w", err)
		}
		for _, cs := range page.Cases {
			cases = append(cases, fromAPI(cs))
		}
	}
	return cases, nil
}

func (c *Collector) wait(ctx context.Context) error {
	if c.Limiter == nil {
		return nil
	}
	return c.Limiter.Wait(ctx)
}

func (c *Collector) roleName() string {
	if c.RoleName == "" {
		return DefaultRoleName
	}
	return c.RoleName
}

func (c *Collector) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Collector) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
