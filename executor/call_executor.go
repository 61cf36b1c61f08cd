package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/harishgarg/procflow/jpel"
	"github.com/harishgarg/procflow/logger"
	"github.com/harishgarg/procflow/model"
	"github.com/harishgarg/procflow/util"
	"go.uber.org/zap"
)

// CallExecutor performs the outbound request of an ExternalCall activity.
// References in url, headers, query and body are substituted against the
// instance snapshot before the call goes out. A non-2xx response is result
// data for downstream compute and branch logic, never an error; only
// transport failures and timeouts fail the call.
type CallExecutor struct {
	client         *http.Client
	evaluator      *jpel.Evaluator
	env            map[string]string
	defaultTimeout time.Duration
}

type CallResult struct {
	Status int    `json:"status"`
	Body   any    `json:"body,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

func NewCallExecutor(evaluator *jpel.Evaluator, env map[string]string, defaultTimeout time.Duration) *CallExecutor {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &CallExecutor{
		client:         &http.Client{},
		evaluator:      evaluator,
		env:            env,
		defaultTimeout: defaultTimeout,
	}
}

func (e *CallExecutor) Execute(call *model.CallDef, inst *model.ProcessInstance) (*CallResult, error) {
	timeout := e.defaultTimeout
	if call.TimeoutSeconds > 0 {
		timeout = time.Duration(call.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	target := util.ResolveString(call.Url, inst, e.env)
	if len(call.Query) > 0 {
		q := url.Values{}
		for k, v := range call.Query {
			q.Set(k, util.ResolveString(v, inst, e.env))
		}
		if u, err := url.Parse(target); err == nil {
			existing := u.Query()
			for k, vs := range q {
				for _, v := range vs {
					existing.Add(k, v)
				}
			}
			u.RawQuery = existing.Encode()
			target = u.String()
		}
	}

	var body io.Reader
	if len(call.Body) > 0 {
		resolved := util.ResolveParams(call.Body, inst, e.env)
		data, err := json.Marshal(resolved)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range call.Headers {
		req.Header.Set(k, util.ResolveString(v, inst, e.env))
	}

	logger.Debug("executing external call", zap.String("method", call.Method), zap.String("url", target), zap.String("instanceId", inst.Id))
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	result := &CallResult{Status: resp.StatusCode}
	var parsed any
	if json.Unmarshal(raw, &parsed) == nil {
		result.Body = parsed
	} else {
		result.Raw = string(raw)
	}
	return result, nil
}
