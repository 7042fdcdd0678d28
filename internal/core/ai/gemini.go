package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/cvflow/internal/core"
)

var _ core.Gateway = (*GeminiGateway)(nil)

// GeminiGateway implements every AI capability the pipeline consumes:
// structured extraction, report generation, web research and chat.
type GeminiGateway struct {
	client     *genai.Client
	modelName  string
	sink       core.ReportSink
	httpClient *http.Client
	callPause  time.Duration
}

func NewGeminiGateway(ctx context.Context, apiKey, modelName string, sink core.ReportSink, callPause time.Duration) (*GeminiGateway, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiGateway{
		client:     cl,
		modelName:  modelName,
		sink:       sink,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		callPause:  callPause,
	}, nil
}

func (g *GeminiGateway) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiGateway) generate(ctx context.Context, prompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

const extractPrompt = `Analise o currículo e extraia um JSON com os campos:
nome_completo, email, telefone, linkedin, cidade, area_atuacao,
anos_experiencia, formacao, idiomas, habilidades.
INSTRUÇÕES:
- Use null para campos ausentes
- "idiomas" e "habilidades" são arrays de strings
- Retorne APENAS o objeto JSON, sem nenhum outro texto
--- CV ---
%s
--- FIM CV ---`

// ExtractData pulls the structured candidate fields out of resume text.
func (g *GeminiGateway) ExtractData(ctx context.Context, text string) (map[string]any, string, bool) {
	log.Println("Enviando solicitação IA (extração)...")
	raw, err := g.generate(ctx, fmt.Sprintf(extractPrompt, text))
	if err != nil {
		log.Printf("Erro na API GenAI (extração): %v", err)
		if IsQuotaError(err) {
			return nil, "Erro de Cota da API (extração)", true
		}
		return nil, fmt.Sprintf("Erro na API (extração): %v", err), false
	}

	fields, err := parseModelJSON(raw)
	if err != nil {
		log.Printf("Erro ao decodificar JSON da extração: %v", err)
		return nil, fmt.Sprintf("Erro no formato JSON: %v", err), false
	}
	if fields["nome_completo"] == nil {
		log.Println("IA não extraiu 'nome_completo'.")
	}
	return fields, "Dados extraídos com sucesso.", false
}

const reportPrompt = `Baseado nos dados e no CV (%s), gere um relatório em TXT.
Dados: Nome: %s Email: %s Tel: %s
--- CV ---
%s
--- FIM CV ---
Instruções:
- Formato TXT sem Markdown
- Para listas, use apenas "- " no início de cada item
- Mantenha o texto limpo e fácil de ler`

// GenerateReport builds the per-candidate report and saves it through the
// configured sink.
func (g *GeminiGateway) GenerateReport(ctx context.Context, fields map[string]any, text, originalName, batchID string) (bool, string, bool) {
	if strings.TrimSpace(text) == "" {
		return false, "Texto do CV não disponível (relatório)", false
	}
	log.Printf("Gerando relatório para: %s", originalName)

	prompt := fmt.Sprintf(reportPrompt,
		originalName, fieldOr(fields, "nome_completo"), fieldOr(fields, "email"), fieldOr(fields, "telefone"), text)

	body, err := g.generate(ctx, prompt)
	if err != nil {
		log.Printf("Erro na API GenAI (relatório): %v", err)
		if IsQuotaError(err) {
			return false, "Erro de Cota da API (relatório)", true
		}
		return false, fmt.Sprintf("Erro na API (relatório): %v", err), false
	}
	if strings.TrimSpace(body) == "" {
		return false, "Erro ao processar resposta da IA (relatório)", false
	}

	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	reportName := fmt.Sprintf("relatorio_%s.txt", base)

	location, err := g.sink.Save(ctx, batchID, reportName, []byte(body))
	if err != nil {
		log.Printf("Erro ao salvar relatório %s: %v", reportName, err)
		return false, fmt.Sprintf("Erro ao salvar relatório: %v", err), false
	}
	log.Printf("Relatório salvo em %s", location)
	return true, fmt.Sprintf("Relatório salvo como %s", reportName), false
}

// Chat answers a fully rendered prompt.
func (g *GeminiGateway) Chat(ctx context.Context, prompt string) (string, bool, error) {
	reply, err := g.generate(ctx, prompt)
	if err != nil {
		return "", IsQuotaError(err), err
	}
	return strings.TrimSpace(reply), false, nil
}

// parseModelJSON tolerates the model wrapping its JSON in markdown fences.
func parseModelJSON(raw string) (map[string]any, error) {
	cleaned := stripFences(raw)
	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func fieldOr(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return "N/E"
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "N/E"
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
