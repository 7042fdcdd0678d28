package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/markdave123-py/cvflow/internal/core"
	"github.com/markdave123-py/cvflow/internal/core/chat"
	"github.com/markdave123-py/cvflow/internal/models"
)

// Named pipeline steps. The names are part of the observable protocol: the
// client renders them and the step log is keyed by them.
const (
	StepRead      = "Leitura"
	StepExtract   = "Analisando dados do arquivo"
	StepReport    = "Gerando relatório"
	StepWebSearch = "Pesquisando tópico chave online"
)

// Config carries the orchestrator knobs. Pauses are fixed backpressure
// against the shared AI quota budget; tests run them at zero.
type Config struct {
	UploadDir           string
	PauseBetweenFiles   time.Duration
	PauseBetweenAICalls time.Duration
	SettlePause         time.Duration
}

// Orchestrator drives one batch through its whole workflow: archive
// expansion, the sequential per-file pipeline, result persistence, the
// optional initial instruction and the terminal status commit, emitting a
// single ordered progress-event sequence along the way.
//
// Files are processed strictly sequentially. The AI gateway imposes one
// shared quota budget, so interleaving calls would make quota attribution
// and backoff timing unpredictable for no throughput gain.
type Orchestrator struct {
	store   core.Store
	gateway core.Gateway
	reader  core.DocumentReader
	conv    *chat.Conversation
	cfg     Config
}

func NewOrchestrator(store core.Store, gateway core.Gateway, reader core.DocumentReader, conv *chat.Conversation, cfg Config) *Orchestrator {
	return &Orchestrator{store: store, gateway: gateway, reader: reader, conv: conv, cfg: cfg}
}

type workItem struct {
	fileID int64
	name   string
	path   string
}

type runState struct {
	worklist    []workItem
	scratchDirs []string
	results     []*models.Result
	quotaError  bool
}

// Run processes the batch and pushes every progress event into events. The
// caller owns the channel; Run never closes it. File-level failures are
// isolated per file; only orchestration-level faults flip the batch to
// failed. Scratch extraction dirs are removed unconditionally at the end.
func (o *Orchestrator) Run(ctx context.Context, batchID string, events chan<- Event) error {
	log.Printf("--- Iniciando processamento do lote %s ---", batchID)
	emit := func(ev Event) { events <- ev }

	st := &runState{}
	defer func() {
		for _, dir := range st.scratchDirs {
			if err := os.RemoveAll(dir); err != nil {
				log.Printf("Erro ao remover pasta %s: %v", dir, err)
			} else {
				log.Printf("Pasta de extração removida: %s", dir)
			}
		}
	}()

	if err := o.process(ctx, batchID, st, emit); err != nil {
		log.Printf("Erro crítico no lote %s: %v", batchID, err)
		if uerr := o.store.UpdateBatchStatus(ctx, batchID, models.BatchStatusFailed, &st.quotaError); uerr != nil {
			log.Printf("Falha ao gravar status de erro do lote %s: %v", batchID, uerr)
		}
		emit(errorEvent("Erro crítico durante a análise do lote."))
		emit(Event{Type: EventBatchFailed, Message: "Análise do lote falhou.", QuotaError: &st.quotaError})
		return err
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, batchID string, st *runState, emit func(Event)) error {
	batch, err := o.store.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("load batch %s: %w", batchID, err)
	}
	if batch == nil {
		emit(errorEvent("ID de lote inválido."))
		return nil
	}
	if batch.Status != models.BatchStatusPending {
		emit(errorEvent(fmt.Sprintf("Lote já processado ou em processamento (status: %s).", batch.Status)))
		return nil
	}

	ok, err := o.store.BeginProcessing(ctx, batchID)
	if err != nil {
		return fmt.Errorf("transition batch %s to processing: %w", batchID, err)
	}
	if !ok {
		// Lost the race against a concurrent start for the same batch id.
		emit(errorEvent("Lote já processado ou em processamento."))
		return nil
	}
	log.Printf("Lote %s: status atualizado para '%s'", batchID, models.BatchStatusProcessing)

	initialFiles, err := o.store.GetBatchFiles(ctx, batchID, true)
	if err != nil {
		return fmt.Errorf("load files for batch %s: %w", batchID, err)
	}

	batchFolder := filepath.Join(o.cfg.UploadDir, batchID)

	containsArchive := false
	for _, f := range initialFiles {
		if IsArchive(f.OriginalName) {
			containsArchive = true
			break
		}
	}
	if containsArchive {
		emit(statusEvent("Passo 1: Verificando e extraindo arquivos ZIP..."))
	} else {
		emit(statusEvent("Passo 1: Verificando arquivos..."))
	}
	o.settle()

	register := func(bID, displayName, extractedPath string) (int64, error) {
		rec := &models.FileRecord{
			BatchID:              bID,
			OriginalName:         displayName,
			SavedPath:            extractedPath,
			ExtractedFromArchive: true,
		}
		id, err := o.store.CreateFile(ctx, rec)
		if err != nil {
			return 0, err
		}
		st.worklist = append(st.worklist, workItem{fileID: id, name: displayName, path: extractedPath})
		return id, nil
	}

	for _, f := range initialFiles {
		switch {
		case IsArchive(f.OriginalName):
			emit(statusEvent(fmt.Sprintf("Extraindo ZIP: %s...", f.OriginalName)))
			scratch := filepath.Join(batchFolder,
				fmt.Sprintf("zip_extract_%s_%s", sanitizeName(f.OriginalName), uuid.NewString()[:8]))
			if err := os.MkdirAll(scratch, 0o755); err != nil {
				return fmt.Errorf("create scratch dir for %s: %w", f.OriginalName, err)
			}
			st.scratchDirs = append(st.scratchDirs, scratch)
			for ev := range ExpandArchive(f.SavedPath, scratch, batchID, register) {
				emit(ev)
			}
		case AllowedDocumentFile(f.OriginalName):
			st.worklist = append(st.worklist, workItem{fileID: f.ID, name: f.OriginalName, path: f.SavedPath})
		default:
			// Stored but never promised analysis; dropped from the worklist.
			log.Printf("Lote %s: arquivo %s ignorado (tipo não suportado)", batchID, f.OriginalName)
		}
	}

	total := len(st.worklist)
	if total == 0 {
		emit(warningEvent("Nenhum arquivo CV válido (PDF/DOCX) encontrado para analisar."))
		if err := o.store.UpdateBatchStatus(ctx, batchID, models.BatchStatusCompleted, &st.quotaError); err != nil {
			return fmt.Errorf("finalize empty batch %s: %w", batchID, err)
		}
		emit(Event{Type: EventBatchDone, Message: "Nenhum arquivo válido para analisar.", QuotaError: &st.quotaError})
		return nil
	}

	emit(statusEvent(fmt.Sprintf("Passo 2: Iniciando análise de %d CV(s)...", total)))
	o.settle()

	for i, item := range st.worklist {
		emit(Event{Type: EventFileStart, Filename: item.name, Index: i + 1, Total: total, FileID: item.fileID})
		if i > 0 {
			o.pause(emit, o.cfg.PauseBetweenFiles)
		}
		res, fileQuota := o.processFile(ctx, batchID, item, batch.Flags, emit)
		if fileQuota {
			st.quotaError = true
		}
		st.results = append(st.results, res)
		emit(Event{Type: EventFileDone, Result: res})
	}

	log.Printf("Salvando %d resultado(s) do lote %s", len(st.results), batchID)
	if err := o.store.CreateResults(ctx, st.results); err != nil {
		return fmt.Errorf("persist results for batch %s: %w", batchID, err)
	}

	if batch.InitialInstruction != "" {
		emit(statusEvent("Processando instrução inicial..."))
		o.settle()
		reply, quotaErr := o.conv.InitialInstruction(ctx, batchID, batch.InitialInstruction, st.results)
		switch {
		case quotaErr:
			st.quotaError = true
			emit(errorEvent(reply))
		case strings.HasPrefix(reply, chat.NotProcessedPrefix):
			emit(warningEvent(reply))
		default:
			emit(Event{Type: EventInitialInstructionResult, Reply: reply})
			turn := &models.ChatTurn{BatchID: batchID, UserMessage: batch.InitialInstruction, ModelReply: reply}
			if err := o.store.CreateChatTurn(ctx, turn); err != nil {
				log.Printf("Erro ao salvar instrução inicial do lote %s: %v", batchID, err)
			}
		}
	}

	if err := o.store.UpdateBatchStatus(ctx, batchID, models.BatchStatusCompleted, &st.quotaError); err != nil {
		return fmt.Errorf("finalize batch %s: %w", batchID, err)
	}
	emit(Event{Type: EventBatchDone, Message: "Análise do lote concluída.", QuotaError: &st.quotaError})
	log.Printf("--- Lote %s concluído | quota_error=%v ---", batchID, st.quotaError)
	return nil
}

// processFile runs one worklist entry through read -> extract -> optional
// report -> optional web search. Failures stay inside this file: the error
// is recorded on its Result and the batch loop moves on.
func (o *Orchestrator) processFile(ctx context.Context, batchID string, item workItem, flags map[string]bool, emit func(Event)) (*models.Result, bool) {
	start := time.Now()
	res := &models.Result{
		FileID:      item.fileID,
		BatchID:     batchID,
		Filename:    item.name,
		StatusFinal: models.StatusPending,
		Steps:       models.NewStepLog(),
	}
	quota := false

	err := func() error {
		emit(Event{Type: EventStepStart, Filename: item.name, Step: StepRead})
		text, rerr := o.reader.ReadText(item.path)
		if rerr != nil {
			return fmt.Errorf("erro interno na leitura do arquivo: %w", rerr)
		}
		res.FullText = &text

		var readStatus string
		if strings.TrimSpace(text) == "" {
			readStatus = "Arquivo vazio ou sem texto legível."
		} else {
			readStatus = fmt.Sprintf("OK (%d caracteres).", utf8.RuneCountInString(text))
		}
		res.Steps.Set(StepRead, readStatus)
		emit(Event{Type: EventStepDone, Filename: item.name, Step: StepRead, Status: readStatus})

		if strings.TrimSpace(text) == "" {
			res.Steps.Set(StepExtract, models.StepStatusSkippedNoText)
			res.Steps.Set(StepReport, models.StepStatusSkippedNoText)
			res.Steps.Set(StepWebSearch, models.StepStatusSkippedNoText)
			res.StatusFinal = models.StatusSuccessNoText
			return nil
		}

		o.pause(emit, o.cfg.PauseBetweenAICalls)

		emit(Event{Type: EventStepStart, Filename: item.name, Step: StepExtract})
		fields, extractStatus, qErr := o.gateway.ExtractData(ctx, text)
		res.Steps.Set(StepExtract, extractStatus)
		if qErr {
			quota = true
		}
		if fields == nil {
			emit(Event{
				Type:     EventWarning,
				Filename: item.name,
				Message:  fmt.Sprintf("Não foi possível extrair dados básicos. (%s)", extractStatus),
			})
		} else {
			res.Data = fields
		}
		emit(Event{Type: EventStepDone, Filename: item.name, Step: StepExtract, Status: extractStatus, Data: fields})

		if flags[models.FlagGenerateReport] {
			emit(Event{Type: EventStepStart, Filename: item.name, Step: StepReport})
			o.pause(emit, o.cfg.PauseBetweenAICalls)
			_, reportStatus, qErr := o.gateway.GenerateReport(ctx, fields, text, item.name, batchID)
			res.Steps.Set(StepReport, reportStatus)
			if qErr {
				quota = true
			}
			emit(Event{Type: EventStepDone, Filename: item.name, Step: StepReport, Status: reportStatus})
		} else {
			res.Steps.Set(StepReport, models.StepStatusNotRequested)
		}

		if flags[models.FlagSearchWeb] {
			emit(Event{Type: EventStepStart, Filename: item.name, Step: StepWebSearch})
			o.pause(emit, o.cfg.PauseBetweenAICalls)
			webStatus, summary, qErr := o.gateway.SummarizeWeb(ctx, text)
			res.Steps.Set(StepWebSearch, webStatus)
			res.WebSummary = summary
			if qErr {
				quota = true
			}
			emit(Event{Type: EventStepDone, Filename: item.name, Step: StepWebSearch, Status: webStatus, Summary: summary})
		} else {
			res.Steps.Set(StepWebSearch, models.StepStatusNotRequested)
		}

		res.StatusFinal = models.StatusSuccess
		return nil
	}()

	if err != nil {
		msg := fmt.Sprintf("Erro no processamento do arquivo %s: %v", item.name, err)
		log.Print(msg)
		res.StatusFinal = models.StatusError
		res.ErrorMessage = err.Error()
		emit(Event{Type: EventFileError, Filename: item.name, Message: msg})
	}

	log.Printf("=== Fim do arquivo %s (ID %d): %.2fs | status: %s | quota: %v ===",
		item.name, item.fileID, time.Since(start).Seconds(), res.StatusFinal, quota)
	return res, quota
}

// pause announces the wait to the client, then sleeps.
func (o *Orchestrator) pause(emit func(Event), d time.Duration) {
	emit(pauseEvent(d.Seconds()))
	if d > 0 {
		time.Sleep(d)
	}
}

func (o *Orchestrator) settle() {
	if o.cfg.SettlePause > 0 {
		time.Sleep(o.cfg.SettlePause)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(filepath.Base(name), "_")
}
