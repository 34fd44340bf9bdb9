package sqlinline

// QEnqueueGenerationJob atomically consumes daily quota and inserts a queued
// job. No row comes back when the quota would be exceeded.
const QEnqueueGenerationJob = `--sql 3f8be0d4-91c2-4a7e-bb61-28f4d7a90c15
with input as (
  select
    $1::uuid  as user_id,
    $2::text  as task_type,
    $3::jsonb as prompt_json,
    $4::int   as quantity,
    $5::text  as aspect_ratio,
    $6::text  as provider
),
consumed as (
  update users u
  set properties = jsonb_set(
    u.properties,
    '{quota_used_today}',
    (coalesce((u.properties->>'quota_used_today')::int, 0) + (select quantity from input))::text::jsonb,
    true
  ),
  updated_at = now()
  where u.id = (select user_id from input)
    and coalesce((u.properties->>'quota_used_today')::int, 0) + (select quantity from input)
        <= coalesce((u.properties->>'quota_daily')::int, 2)
  returning
    u.id,
    coalesce((u.properties->>'quota_daily')::int, 2)
      - coalesce((u.properties->>'quota_used_today')::int, 0) as remaining
),
ins_job as (
  insert into jobs(id, user_id, type, status, prompt_json, quantity, aspect_ratio, provider)
  select
    gen_random_uuid(),
    (select user_id from input),
    (select task_type from input),
    'QUEUED',
    (select prompt_json from input),
    (select quantity from input),
    (select aspect_ratio from input),
    (select provider from input)
  where exists (select 1 from consumed)
  returning id
)
select ins_job.id, consumed.remaining
from ins_job, consumed;
`

// QWorkerClaimJob hands exactly one queued job to a worker. SKIP LOCKED keeps
// concurrent workers from claiming the same row.
const QWorkerClaimJob = `--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db
with next_job as (
    select id
    from jobs
    where status = 'QUEUED'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update jobs
    set status = 'RUNNING', updated_at = now()
    where id in (select id from next_job)
    returning id, user_id, type, provider, quantity, aspect_ratio, prompt_json
)
select * from updated;
`

const QUpdateJobStatus = `--sql 9d3c17ef-5a80-4a94-9a0d-6f2c3be441d8
update jobs
set status = $2::text,
    error_kind = coalesce(nullif($3::text, ''), error_kind),
    error_message = coalesce(nullif($4::text, ''), error_message),
    result_json = coalesce($5::jsonb, result_json),
    updated_at = now()
where id = $1::uuid;
`

const QSelectJobStatus = `--sql 7b2e9c40-6d11-48a5-8e37-f90a4d1b62c3
select id, user_id, type, status, provider, quantity, aspect_ratio, error_kind, error_message, result_json, created_at, updated_at
from jobs
where id = $1::uuid and user_id = $2::uuid
limit 1;
`

const QSelectJobAssets = `--sql a1c84f72-30bd-4c69-9f15-d2e7b8a04c56
select a.id, a.storage_key, a.mime, a.bytes, a.width, a.height, a.aspect_ratio, a.properties, a.created_at
from assets a
join jobs j on j.id = a.job_id
where a.job_id = $1::uuid and j.user_id = $2::uuid
order by a.created_at asc;
`
