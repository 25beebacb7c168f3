// Package scoring ranks vcpkg ports.
//
// A port gets three factor scores in [0, 1]:
//
//   - quality: manifest completeness plus upstream description, license and
//     topics, penalised for archived or disabled repositories
//   - popularity: log10 compressed stars, forks and watchers
//   - maintenance: recency of the last push, adjusted by open issues
//
// The final score weights them 0.3/0.3/0.2 and adds 0.2 of the raw search
// relevance divided by RelevanceScale. All functions are pure.
package scoring
