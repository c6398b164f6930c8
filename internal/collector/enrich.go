package collector

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/support/types"

	"github.com/kylejryan/support-case-insights/internal/models"
)

// ContextSentence renders the search context stored with each case.
func ContextSentence(accountID string, c models.CaseDetails) string {
	return fmt.Sprintf("This is an AWS support case ID %s in account ID %s. "+
		"The case was opened on %s; It is a %s case related to the %s service with %s severity. "+
		"The details are on the body fields of the JSON.",
		c.DisplayID, accountID, c.TimeCreated, c.Status, c.ServiceCode, c.SeverityCode)
}

// Enrich wraps a case with its account and context sentence.
func Enrich(accountID string, c models.CaseDetails) models.CaseEnvelope {
	return models.CaseEnvelope{
		AccountID:          accountID,
		Case:               c,
		SupportCaseContext: ContextSentence(accountID, c),
	}
}

func fromAPI(c types.CaseDetails) models.CaseDetails {
	out := models.CaseDetails{
		CaseID:           aws.ToString(c.CaseId),
		DisplayID:        aws.ToString(c.DisplayId),
		TimeCreated:      aws.ToString(c.TimeCreated),
		Status:           aws.ToString(c.Status),
		SeverityCode:     aws.ToString(c.SeverityCode),
		ServiceCode:      aws.ToString(c.ServiceCode),
		CategoryCode:     aws.ToString(c.CategoryCode),
		Subject:          aws.ToString(c.Subject),
		SubmittedBy:      aws.ToString(c.SubmittedBy),
		Language:         aws.ToString(c.Language),
		CcEmailAddresses: c.CcEmailAddresses,
	}
	if rc := c.RecentCommunications; rc != nil {
		out.RecentCommunications = &models.RecentCaseCommunications{NextToken: aws.ToString(rc.NextToken)}
		for _, m := range rc.Communications {
			comm := models.Communication{
				CaseID:      aws.ToString(m.CaseId),
				Body:        aws.ToString(m.Body),
				SubmittedBy: aws.ToString(m.SubmittedBy),
				TimeCreated: aws.ToString(m.TimeCreated),
			}
			for _, a := range m.AttachmentSet {
				comm.AttachmentSet = append(comm.AttachmentSet, models.Attachment{
					AttachmentID: aws.ToString(a.AttachmentId),
					FileName:     aws.ToString(a.FileName),
				})
			}
			out.RecentCommunications.Communications = append(out.RecentCommunications.Communications, comm)
		}
	}
	return out
}
