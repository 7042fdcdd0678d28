package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const keywordsPrompt = `Analise o CV abaixo e extraia uma lista [array] das 5 a 7 palavras-chave ou entidades mais relevantes (tecnologias específicas, nomes de empresas importantes, conceitos de projetos, metodologias). Dê preferência a termos técnicos. Retorne APENAS um array JSON de strings, sem nenhum outro texto.
--- CV ---
%s
--- FIM CV ---`

const webSummaryContextLimit = 8000

// SummarizeWeb researches one key topic from the resume online: extract
// keywords, pick one, ask the model for a reference URL, fetch it, reduce
// the page to readable text and summarize it. Every failure along the way
// returns a descriptive status with a nil summary; only a produced summary
// yields a non-nil result.
func (g *GeminiGateway) SummarizeWeb(ctx context.Context, text string) (string, *string, bool) {
	if strings.TrimSpace(text) == "" {
		return "Texto do CV não disponível (pesquisa)", nil, false
	}

	log.Println("Iniciando pesquisa web dinâmica por keyword")

	// Keywords
	raw, err := g.generate(ctx, fmt.Sprintf(keywordsPrompt, text))
	if err != nil {
		log.Printf("Erro na API GenAI (keywords): %v", err)
		if IsQuotaError(err) {
			return "Erro de Cota da API (keywords)", nil, true
		}
		return "Erro na API ao extrair keywords.", nil, false
	}
	var keywords []string
	if err := json.Unmarshal([]byte(stripFences(raw)), &keywords); err != nil {
		log.Printf("Erro JSON (keywords): %v. Resposta: %q", err, truncateRunes(raw, 200))
		return "Erro ao processar keywords da IA (formato inválido).", nil, false
	}
	if len(keywords) == 0 {
		return "Nenhuma keyword válida foi extraída para pesquisa.", nil, false
	}

	topic := keywords[rand.IntN(len(keywords))]
	log.Printf("Keyword selecionada para pesquisa: %q", topic)

	// URL lookup
	time.Sleep(g.callPause)
	urlPrompt := fmt.Sprintf("Sugira a melhor URL (página oficial, documentação, artigo de referência confiável) para saber mais sobre o tópico: '%s'. Retorne APENAS a URL completa como texto simples.", topic)
	rawURL, err := g.generate(ctx, urlPrompt)
	if err != nil {
		log.Printf("Erro na API GenAI (busca URL): %v", err)
		if IsQuotaError(err) {
			return "Erro de Cota da API (busca URL)", nil, true
		}
		return "Erro na API ao buscar URL.", nil, false
	}
	pageURL := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		log.Printf("IA retornou URL inválida para %q: %q", topic, pageURL)
		return fmt.Sprintf("IA não encontrou URL válida para '%s'.", topic), nil, false
	}

	// Fetch
	log.Printf("Baixando conteúdo de: %s", pageURL)
	title, content, err := g.fetchReadable(ctx, pageURL)
	if err != nil {
		status := fmt.Sprintf("Erro ao baixar URL '%s': %v", pageURL, err)
		log.Print(status)
		return status, nil, false
	}
	if content == "" {
		return fmt.Sprintf("Não foi possível extrair conteúdo relevante da página para sumarizar sobre '%s'.", topic), nil, false
	}

	// Summarize
	time.Sleep(g.callPause)
	summaryPrompt := fmt.Sprintf(
		"Você é um assistente que resume conteúdo técnico. Resuma o seguinte conteúdo web sobre '%s' em 3 a 5 frases concisas e informativas para um recrutador.\n\nTítulo da Página: %s\n\nConteúdo Extraído:\n%s\n\n---\nResumo Conciso (em português, formato TXT simples):",
		topic, title, truncateRunes(content, webSummaryContextLimit))
	rawSummary, err := g.generate(ctx, summaryPrompt)
	if err != nil {
		log.Printf("Erro na API GenAI (sumarização): %v", err)
		if IsQuotaError(err) {
			return "Erro de Cota da API (sumarização)", nil, true
		}
		return "Erro na API ao sumarizar.", nil, false
	}
	summary := strings.TrimSpace(rawSummary)
	if summary == "" {
		return fmt.Sprintf("IA não gerou resumo para '%s'.", topic), nil, false
	}

	result := fmt.Sprintf("Fonte: %s\nResumo (IA) sobre '%s': %s", pageURL, topic, summary)
	return "Pesquisa e sumarização web concluídas.", &result, false
}

// fetchReadable downloads the page and reduces it to a title plus readable
// body text.
func (g *GeminiGateway) fetchReadable(ctx context.Context, pageURL string) (title, content string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, 4<<20)
	return extractReadable(body)
}

// extractReadable strips chrome elements and returns the page title plus
// the text of the main content area, preferring the leading paragraphs.
func extractReadable(r io.Reader) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Título não encontrado"
	}

	doc.Find("script, style, header, footer, nav, aside, form, button, img, iframe").Remove()

	main := doc.Find("main, article, div[role='main'], #content, .content").First()
	if main.Length() == 0 {
		main = doc.Find("body")
	}

	var paragraphs []string
	main.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
		return len(paragraphs) < 15
	})
	joined := strings.Join(paragraphs, "\n")
	if len(joined) > 200 {
		return title, joined, nil
	}

	// Too little paragraph text; fall back to the whole main area.
	var lines []string
	for _, line := range strings.Split(main.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	whole := strings.Join(lines, "\n")
	if len(whole) > 100 {
		return title, whole, nil
	}
	return title, "", nil
}
