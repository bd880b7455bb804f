package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/netopscockpit/cockpit/internal/inventory"
	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/repository"
	"github.com/netopscockpit/cockpit/internal/scan"
	"github.com/netopscockpit/cockpit/internal/sms"
)

// StartScanRequest is the input for starting a discovery run.
type StartScanRequest struct {
	CIDRs             []string `json:"cidrs" validate:"required,min=1"`
	CredentialIDs     []int64  `json:"credential_ids" validate:"required,min=1"`
	DiscoveryMode     string   `json:"discovery_mode" validate:"required,oneof=napalm ssh-login"`
	ParserTemplateIDs []int64  `json:"parser_template_ids,omitempty"`
}

// StartScanResponse is the job handle returned on start.
type StartScanResponse struct {
	JobID        string           `json:"job_id"`
	TotalTargets int              `json:"total_targets"`
	State        models.ScanState `json:"state"`
}

// OnboardRequest submits scan results for onboarding.
type OnboardRequest struct {
	Devices             []models.OnboardDevice `json:"devices" validate:"required,min=1,dive"`
	GitRepositoryID     *int64                 `json:"git_repository_id,omitempty"`
	InventoryTemplateID *int64                 `json:"inventory_template_id,omitempty"`
	Filename            string                 `json:"filename,omitempty"`
	AutoCommit          bool                   `json:"auto_commit,omitempty"`
	AutoPush            bool                   `json:"auto_push,omitempty"`
	CommitMessage       string                 `json:"commit_message,omitempty"`
}

// SMSOnboarder submits onboarding jobs to the SMS.
type SMSOnboarder interface {
	Onboard(ctx context.Context, req sms.OnboardRequest) (string, error)
}

// ScanService drives discovery runs and post-scan onboarding.
type ScanService interface {
	Start(ctx context.Context, req StartScanRequest) (*StartScanResponse, error)
	Status(ctx context.Context, jobID string) (*models.ScanJobStatus, error)
	Delete(ctx context.Context, jobID string) error
	Jobs(ctx context.Context) []models.ScanJobSummary
	Onboard(ctx context.Context, jobID string, req OnboardRequest) (*models.OnboardResult, error)
}

type scanService struct {
	engine    *scan.Engine
	registry  *scan.Registry
	onboarder SMSOnboarder
	templates repository.TemplateRepository
	gitRepos  repository.GitRepositoryRepository
	generator *inventory.Generator
}

// NewScanService creates the scan service.
func NewScanService(engine *scan.Engine, registry *scan.Registry, onboarder SMSOnboarder, templates repository.TemplateRepository, gitRepos repository.GitRepositoryRepository, generator *inventory.Generator) ScanService {
	return &scanService{
		engine:    engine,
		registry:  registry,
		onboarder: onboarder,
		templates: templates,
		gitRepos:  gitRepos,
		generator: generator,
	}
}

func (s *scanService) Start(ctx context.Context, req StartScanRequest) (*StartScanResponse, error) {
	job, err := s.engine.Start(ctx, scan.StartRequest{
		CIDRs:             req.CIDRs,
		CredentialIDs:     req.CredentialIDs,
		Mode:              models.DiscoveryMode(req.DiscoveryMode),
		ParserTemplateIDs: req.ParserTemplateIDs,
	})
	if err != nil {
		return nil, err
	}

	status := job.Status()
	return &StartScanResponse{
		JobID:        status.JobID,
		TotalTargets: status.Progress.TotalTargets,
		State:        status.State,
	}, nil
}

func (s *scanService) Status(_ context.Context, jobID string) (*models.ScanJobStatus, error) {
	job := s.registry.Get(jobID)
	if job == nil {
		return nil, apierrors.NewNotFoundError("Scan job")
	}
	status := job.Status()
	return &status, nil
}

func (s *scanService) Delete(_ context.Context, jobID string) error {
	if !s.registry.Delete(jobID) {
		return apierrors.NewNotFoundError("Scan job")
	}
	return nil
}

func (s *scanService) Jobs(_ context.Context) []models.ScanJobSummary {
	return s.registry.List()
}

// Onboard validates each submitted device against the job's results,
// queues SMS jobs for cisco devices and collects linux devices into a
// generated inventory. Individual device failures do not abort the
// batch.
func (s *scanService) Onboard(ctx context.Context, jobID string, req OnboardRequest) (*models.OnboardResult, error) {
	job := s.registry.Get(jobID)
	if job == nil {
		return nil, apierrors.NewNotFoundError("Scan job")
	}

	result := &models.OnboardResult{JobIDs: []string{}}
	var linuxDevices []map[string]any

	for _, device := range req.Devices {
		scanResult, ok := job.Result(device.IP)
		if !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: no scan result in job %s", device.IP, jobID))
			continue
		}
		result.Accepted++

		switch scanResult.DeviceType {
		case models.DeviceTypeCisco:
			smsJobID, err := s.onboarder.Onboard(ctx, sms.OnboardRequest{
				IP:              device.IP,
				Location:        device.Location,
				Namespace:       device.Namespace,
				Role:            device.Role,
				Status:          device.Status,
				InterfaceStatus: device.InterfaceStatus,
				IPStatus:        device.IPStatus,
				Platform:        device.Platform,
				Port:            device.Port,
				Timeout:         device.Timeout,
			})
			if err != nil {
				slog.Error("onboarding submission failed", "job_id", jobID, "ip", device.IP, "error", err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", device.IP, err))
				continue
			}
			result.CiscoQueued++
			result.JobIDs = append(result.JobIDs, smsJobID)

		case models.DeviceTypeLinux:
			linuxDevices = append(linuxDevices, linuxDeviceMap(device, scanResult))
			result.LinuxAdded++

		default:
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: device type %s cannot be onboarded", device.IP, scanResult.DeviceType))
		}
	}

	if len(linuxDevices) > 0 {
		path, err := s.writeLinuxInventory(ctx, jobID, req, linuxDevices)
		if err != nil {
			slog.Error("inventory generation failed", "job_id", jobID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("inventory: %v", err))
		} else {
			result.InventoryPath = path
		}
	}

	return result, nil
}

// ParserTemplateSource adapts the template repository to the scan
// engine's template resolution.
type ParserTemplateSource struct {
	Templates repository.TemplateRepository
}

// ParserTemplates resolves TextFSM template bodies by id, in order.
func (p ParserTemplateSource) ParserTemplates(ctx context.Context, ids []int64) ([]string, error) {
	sources := make([]string, 0, len(ids))
	for _, id := range ids {
		tpl, err := p.Templates.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if tpl == nil {
			return nil, apierrors.NewNotFoundError(fmt.Sprintf("Parser template %d", id))
		}
		if tpl.Type != models.TemplateTypeTextFSM {
			return nil, apierrors.NewValidationError("parser_template_ids",
				fmt.Sprintf("template %d is of type %s, expected textfsm", id, tpl.Type))
		}
		src, err := p.Templates.Content(ctx, tpl)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// linuxDeviceMap builds the template context for one linux device,
// normalizing auto-detect platform spellings.
func linuxDeviceMap(device models.OnboardDevice, scanResult models.ScanResult) map[string]any {
	platform := device.Platform
	switch strings.ToLower(platform) {
	case "", "detect", "auto", "auto-detect":
		platform = "linux"
	}
	hostname := device.Hostname
	if hostname == "" {
		hostname = scanResult.Hostname
	}
	return map[string]any{
		"ip":       device.IP,
		"hostname": hostname,
		"platform": platform,
		"location": device.Location,
		"role":     device.Role,
	}
}

// writeLinuxInventory renders the selected template over the linux
// devices and writes the artifact, committing/pushing when asked.
func (s *scanService) writeLinuxInventory(ctx context.Context, jobID string, req OnboardRequest, devices []map[string]any) (string, error) {
	templateSrc := ""
	if req.InventoryTemplateID != nil {
		tpl, err := s.templates.GetByID(ctx, *req.InventoryTemplateID)
		if err != nil {
			return "", err
		}
		if tpl == nil {
			return "", apierrors.NewNotFoundError("Inventory template")
		}
		templateSrc, err = s.templates.Content(ctx, tpl)
		if err != nil {
			return "", err
		}
	}

	content := s.generator.Render(templateSrc, devices)

	var repo *models.GitRepository
	if req.GitRepositoryID != nil {
		var err error
		repo, err = s.gitRepos.GetByID(ctx, *req.GitRepositoryID)
		if err != nil {
			return "", err
		}
		if repo == nil {
			return "", apierrors.NewNotFoundError("Repository")
		}
	}

	filename := req.Filename
	if filename == "" {
		filename = fmt.Sprintf("inventory_%s.yaml", jobID)
	}

	return s.generator.Write(ctx, inventory.WriteRequest{
		Repository:    repo,
		Filename:      filename,
		Content:       content,
		AutoCommit:    req.AutoCommit,
		AutoPush:      req.AutoPush,
		CommitMessage: req.CommitMessage,
	})
}
