package pipeline

import "time"

type PipelineServiceAPI interface {
	GetByNameIfModified(name string, clientLastModified *time.Time) (*GetTemplateResult, error)
	SaveTemplate(name string, cfg map[string]interface{}) (*PipelineTemplate, error)
	DeactivateTemplate(name string) error
}
