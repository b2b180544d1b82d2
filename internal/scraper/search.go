package scraper

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/job-curator/internal/ai"
)

const GetJobsToolName = "get_jobs"

// GetJobsTool is the declaration of the gateway's job search tool.
var GetJobsTool = ai.ToolSpec{
	Name:        GetJobsToolName,
	Description: "Scrape recent job postings from job boards. Returns a JSON array of jobs with title, company, job_url, location, is_remote and description.",
	Params: []ai.ToolParam{
		{Name: "search_term", Type: "string", Description: "Job title or keywords to search for.", Required: true},
		{Name: "location", Type: "string", Description: "City, region or 'Remote'. Empty means anywhere."},
		{Name: "results_wanted", Type: "integer", Description: "Number of postings to return per board."},
		{Name: "hours_old", Type: "integer", Description: "Only return postings newer than this many hours."},
		{Name: "country_indeed", Type: "string", Description: "Country used for Indeed searches, e.g. USA."},
	},
}

// SearchParams are the arguments of one get_jobs search.
type SearchParams struct {
	SearchTerm    string `mapstructure:"search-term" json:"search_term" validate:"required"`
	Location      string `mapstructure:"location" json:"location"`
	ResultsWanted int    `mapstructure:"results-wanted" json:"results_wanted" validate:"gte=1,lte=200"`
	HoursOld      int    `mapstructure:"hours-old" json:"hours_old" validate:"gte=1"`
	CountryIndeed string `mapstructure:"country-indeed" json:"country_indeed" validate:"required"`
}

func DefaultSearchParams() SearchParams {
	return SearchParams{
		SearchTerm:    "software engineer",
		Location:      "",
		ResultsWanted: 10,
		HoursOld:      24,
		CountryIndeed: "USA",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// WithDefaults fills zero-valued fields from DefaultSearchParams.
func (p SearchParams) WithDefaults() SearchParams {
	def := DefaultSearchParams()
	if strings.TrimSpace(p.SearchTerm) == "" {
		p.SearchTerm = def.SearchTerm
	}
	if p.ResultsWanted == 0 {
		p.ResultsWanted = def.ResultsWanted
	}
	if p.HoursOld == 0 {
		p.HoursOld = def.HoursOld
	}
	if strings.TrimSpace(p.CountryIndeed) == "" {
		p.CountryIndeed = def.CountryIndeed
	}
	return p
}

func (p SearchParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid search parameters: %w", err)
	}
	return nil
}

// Args returns the params as get_jobs tool arguments.
func (p SearchParams) Args() map[string]any {
	return map[string]any{
		"search_term":    p.SearchTerm,
		"location":       p.Location,
		"results_wanted": p.ResultsWanted,
		"hours_old":      p.HoursOld,
		"country_indeed": p.CountryIndeed,
	}
}

//go:embed instruction.md
var instructionTemplate string

// Instruction renders the user message that asks the model to run the search.
func (p SearchParams) Instruction() string {
	template := instructionTemplate
	if strings.TrimSpace(template) == "" {
		template = "Use the get_jobs tool with search_term={{SEARCH_TERM}} location={{LOCATION}} results_wanted={{RESULTS_WANTED}} hours_old={{HOURS_OLD}} country_indeed={{COUNTRY_INDEED}}."
	}
	r := strings.NewReplacer(
		"{{SEARCH_TERM}}", p.SearchTerm,
		"{{LOCATION}}", p.Location,
		"{{RESULTS_WANTED}}", strconv.Itoa(p.ResultsWanted),
		"{{HOURS_OLD}}", strconv.Itoa(p.HoursOld),
		"{{COUNTRY_INDEED}}", p.CountryIndeed,
	)
	return r.Replace(template)
}
