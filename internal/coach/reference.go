package coach

// trainingReference is the static guide excerpt included in every
// recommendation prompt. Kept short deliberately; the model needs the
// framing, not a textbook.
const trainingReference = `TRAINING REFERENCE (excerpt)

Acute:Chronic Workload Ratio (ACWR)
- 0.80-1.30: the "sweet spot"; load is progressing at an absorbable rate.
- Below 0.80: detraining risk; fitness gained earlier is decaying.
- Above the athlete's high-risk threshold: injury risk rises sharply;
  hold or reduce load until the ratio settles.

Normalized divergence (external vs internal ACWR)
- Near zero: physiological cost tracks mechanical load; normal response.
- Persistently negative: the body is paying more than the mechanical load
  suggests. Classic early-overtraining signature; prioritize recovery.
- Persistently positive: efficiency is improving; cautious progression is
  appropriate.

Progression guidelines
- Increase weekly load by at most ~10% unless chronically undertrained.
- One full rest day per rolling week unless the athlete's risk profile
  explicitly allows more consecutive training days.
- After a red-flag week (high ratio or deep negative divergence), the next
  week should be a deliberate deload, not a return to prior load.`
