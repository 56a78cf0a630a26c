package executor

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukex/relay/pkg/models"
	"github.com/dukex/relay/pkg/persistence"
	"github.com/dukex/relay/pkg/template"
)

func (e *Executor) changeTag(ctx context.Context, run *Run, node *models.Node, data *models.TagAction) error {
	contact, err := e.contact(ctx, run)
	if err != nil {
		return err
	}

	tag := template.Interpolate(data.TagName, run.Context(contact))
	if tag == "" {
		e.nodeLogger(ctx, run, node).WarnContext(ctx, "Empty tag name, nothing to change")

		return nil
	}

	var tags []string

	switch node.Subtype {
	case models.SubtypeRemoveTag:
		if !contact.HasTag(tag) {
			return nil
		}

		tags = slices.DeleteFunc(slices.Clone(contact.Tags), func(t string) bool { return t == tag })
	default:
		if contact.HasTag(tag) {
			return nil
		}

		tags = append(slices.Clone(contact.Tags), tag)
	}

	_, err = e.contacts.UpdateContact(ctx, contact.ID, models.ContactPatch{Tags: tags})
	if err != nil {
		return fmt.Errorf("failed to update contact tags: %w", err)
	}

	return nil
}

// moveCRMStage moves the contact to the stage and applies the stage tags.
func (e *Executor) moveCRMStage(ctx context.Context, run *Run, node *models.Node, data *models.MoveCRMStageAction) error {
	stage, err := e.crm.StageByID(ctx, data.StageID)
	if err != nil {
		if persistence.IsStageNotFound(err) {
			e.nodeLogger(ctx, run, node).WarnContext(ctx, "CRM stage not found", "stage_id", data.StageID)

			return nil
		}

		return fmt.Errorf("failed to resolve CRM stage: %w", err)
	}

	contact, err := e.contact(ctx, run)
	if err != nil {
		return err
	}

	patch := models.ContactPatch{
		CRMBoardID: &stage.BoardID,
		CRMStageID: &stage.ID,
	}

	if len(stage.Tags) > 0 {
		tags := slices.Clone(contact.Tags)
		for _, tag := range stage.Tags {
			if !slices.Contains(tags, tag) {
				tags = append(tags, tag)
			}
		}

		patch.Tags = tags
	}

	_, err = e.contacts.UpdateContact(ctx, contact.ID, patch)
	if err != nil {
		return fmt.Errorf("failed to move contact to stage: %w", err)
	}

	return nil
}

func (e *Executor) optOut(ctx context.Context, run *Run) error {
	optedOut := true

	_, err := e.contacts.UpdateContact(ctx, run.ContactID, models.ContactPatch{OptedOut: &optedOut})
	if err != nil {
		return fmt.Errorf("failed to opt out contact: %w", err)
	}

	return nil
}
